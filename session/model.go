package session

import "time"

// Session defines a public type used by sessionauth APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	ID     string
	UserID string

	// ImpersonatorUserID is set when an administrator acts as UserID.
	ImpersonatorUserID string

	AccessToken string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Impersonated reports whether the session was opened on behalf of another user.
func (s *Session) Impersonated() bool {
	return s.ImpersonatorUserID != ""
}

// ActiveAt reports whether the session is still usable at now.
func (s *Session) ActiveAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
