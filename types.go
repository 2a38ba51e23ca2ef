package sessionauth

import (
	"context"
	"time"

	"github.com/maccas-one/sessionauth/role"
	"github.com/maccas-one/sessionauth/session"
)

// User is the persisted account.
//
// Username is stored trimmed and lower-cased; stores must match it
// case-insensitively.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Roles        role.Set
	Active       bool
	// Config is the optional store preference, seeded during legacy migration.
	Config    *UserConfig
	CreatedAt time.Time
}

// UserConfig is a user's preferred store.
type UserConfig struct {
	StoreID   string `json:"storeId"`
	StoreName string `json:"storeName"`
}

// LoginResult defines a public type used by sessionauth APIs.
//
// LoginResult is returned by Login, Register, and Impersonate. The caller
// is expected to transport SessionID as the session cookie.
type LoginResult struct {
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
	UserID      string
	Roles       role.Set
	Active      bool
	// Migrated is true when this login provisioned the user from the legacy service.
	Migrated bool
}

// Identity is the result of a successful ValidateSession.
type Identity struct {
	SessionID          string
	UserID             string
	ImpersonatorUserID string
	ExpiresAt          time.Time
}

// Store is the persistence contract for users and sessions.
//
// Lookups return ErrUserNotFound or session.ErrSessionNotFound when nothing
// matches. Implementations must be safe for concurrent use.
type Store interface {
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)

	// WithinTx runs fn in one transaction; fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error
}

// StoreTx is the write side of a Store, valid only inside WithinTx.
type StoreTx interface {
	// CreateUser returns ErrUsernameTaken on a case-insensitive duplicate.
	CreateUser(ctx context.Context, u *User) error
	SaveSession(ctx context.Context, s *session.Session) error
	// SetUserActive returns ErrUserNotFound for an unknown id.
	SetUserActive(ctx context.Context, id string, active bool) error
}
