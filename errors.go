package sessionauth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/maccas-one/sessionauth/session"
)

var (
	// ErrInvalidCredentials covers a wrong password, an unknown user, and a
	// rejected legacy migration alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited is wrapped by *RateLimitedError.
	ErrRateLimited = errors.New("too many attempts")
	// ErrUsernameTaken is returned by Register for a case-insensitive duplicate.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrValidation is wrapped by *ValidationError.
	ErrValidation = errors.New("invalid input")
	// ErrUnauthenticated is the boundary form of a missing or expired session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionNotFound is returned when no session record exists.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrSessionExpired is returned when the session record has passed its expiry.
	ErrSessionExpired = session.ErrSessionExpired
	// ErrForbidden is returned when the caller's current roles lack ADMIN.
	ErrForbidden = errors.New("forbidden")
	// ErrUserNotFound is returned by stores and by admin operations on an unknown target.
	ErrUserNotFound = errors.New("user not found")
	// ErrInternal wraps persistence, signing, and limiter backend failures.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by methods on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitedError carries how long the caller should wait. Validation is
// the form error the same submit would have produced, nil when the form was
// well formed.
type RateLimitedError struct {
	RetryAfter time.Duration
	Validation *ValidationError
}

func (e *RateLimitedError) Error() string {
	return "too many attempts, try again after " + e.retryString() + " seconds"
}

func (e *RateLimitedError) retryString() string {
	return strconv.Itoa(e.RetryAfterSeconds())
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ValidationError names the offending form field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
