package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maccas-one/sessionauth/role"
)

// DefaultTTL is the fixed session lifetime. Sessions do not slide.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrSessionNotFound is returned when no record exists for the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the record exists but its expiry has passed.
	ErrSessionExpired = errors.New("session expired")
)

// TokenSigner produces the bearer token stored alongside a session.
// *jwt.Manager satisfies it.
type TokenSigner interface {
	CreateAccess(userID, sessionID string, roles []string, issuedAt, expiresAt time.Time) (string, error)
}

// Writer persists a fully built session in a single write.
type Writer interface {
	SaveSession(ctx context.Context, s *Session) error
}

// Reader loads a session by id and returns ErrSessionNotFound when absent.
type Reader interface {
	GetSession(ctx context.Context, id string) (*Session, error)
}

// Config defines a public type used by sessionauth APIs.
type Config struct {
	TTL time.Duration
	Now func() time.Time
}

// Manager issues and validates sessions.
type Manager struct {
	ttl    time.Duration
	now    func() time.Time
	signer TokenSigner
}

// NewManager returns a Manager. A zero TTL selects DefaultTTL; any other
// lifetime is rejected.
func NewManager(cfg Config, signer TokenSigner) (*Manager, error) {
	if signer == nil {
		return nil, errors.New("session: token signer is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL != DefaultTTL {
		return nil, fmt.Errorf("session: ttl must be %v", DefaultTTL)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{ttl: cfg.TTL, now: cfg.Now, signer: signer}, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create opens a session for userID carrying roles in its token.
func (m *Manager) Create(ctx context.Context, w Writer, userID string, roles role.Set) (*Session, error) {
	return m.issue(ctx, w, userID, "", roles)
}

// Impersonate opens a session whose subject is targetID and whose
// impersonator is impersonatorID. roles is the already merged set.
func (m *Manager) Impersonate(ctx context.Context, w Writer, impersonatorID, targetID string, roles role.Set) (*Session, error) {
	if impersonatorID == "" {
		return nil, errors.New("session: impersonator id is required")
	}
	return m.issue(ctx, w, targetID, impersonatorID, roles)
}

func (m *Manager) issue(ctx context.Context, w Writer, userID, impersonatorID string, roles role.Set) (*Session, error) {
	if userID == "" {
		return nil, errors.New("session: user id is required")
	}
	if w == nil {
		return nil, errors.New("session: writer is required")
	}

	id, err := NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}

	// Sign before writing so a signing failure leaves nothing behind.
	now := m.now().UTC().Truncate(time.Second)
	expires := now.Add(m.ttl)
	token, err := m.signer.CreateAccess(userID, id, roles.Names(), now, expires)
	if err != nil {
		return nil, fmt.Errorf("session: sign token: %w", err)
	}

	s := &Session{
		ID:                 id,
		UserID:             userID,
		ImpersonatorUserID: impersonatorID,
		AccessToken:        token,
		CreatedAt:          now,
		ExpiresAt:          expires,
	}
	if err := w.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("session: save: %w", err)
	}
	return s, nil
}

// Validate re-reads the record on every call.
func (m *Manager) Validate(ctx context.Context, r Reader, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrSessionNotFound
	}

	s, err := r.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if !s.ActiveAt(m.now()) {
		return nil, ErrSessionExpired
	}
	return s, nil
}
