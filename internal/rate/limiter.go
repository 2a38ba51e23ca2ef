package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// KeyPrefix namespaces every counter key.
const KeyPrefix = "rl:"

// Counter is an atomic fixed-window counter store.
type Counter interface {
	// Increment adds one to key, opening a window of length window on the
	// first hit, and returns the new count and the time left in the window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Clear drops every window.
	Clear(ctx context.Context) error
}

// Request carries the attributes the dimensions are keyed on.
type Request struct {
	IP        string
	UserAgent string
	Cookie    string
}

// Decision is the outcome of one Check.
type Decision struct {
	Limited bool
	// RetryAfter is the longest time left among the exceeded windows.
	RetryAfter time.Duration
	// Dimensions lists the exceeded dimensions. Log it, never return it to clients.
	Dimensions []Dimension
	// Identifier is the raw value of the first exceeded dimension.
	Identifier string
}

// Limiter enforces per-scope, per-dimension attempt ceilings.
type Limiter struct {
	counter Counter
	config  Config
	cookies cookieSigner
}

// New creates a Limiter over counter. cfg is expected to have passed Validate.
func New(counter Counter, cfg Config) *Limiter {
	return &Limiter{
		counter: counter,
		config:  cfg,
		cookies: cookieSigner{key: cfg.CookieSecret},
	}
}

// Check counts one attempt against every applicable dimension of scope.
func (l *Limiter) Check(ctx context.Context, scope Scope, req Request) (Decision, error) {
	policy, ok := l.config.Scopes[scope]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	var d Decision
	for _, dim := range dimensions {
		p := policy.get(dim)
		if p.Limit <= 0 {
			continue
		}

		ident, counted := l.identifier(dim, req)
		if !counted {
			if dim == DimensionCookie && l.config.RequireCookie {
				// No valid preflight cookie: the client skipped the form.
				d.exceed(dim, req.IP, p.Window)
			}
			continue
		}

		count, remaining, err := l.counter.Increment(ctx, key(scope, dim, ident), p.Window)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		}
		if count > int64(p.Limit) {
			if remaining <= 0 || remaining > p.Window {
				remaining = p.Window
			}
			d.exceed(dim, ident, remaining)
		}
	}
	return d, nil
}

func (d *Decision) exceed(dim Dimension, ident string, retry time.Duration) {
	if !d.Limited {
		d.Identifier = ident
	}
	d.Limited = true
	d.Dimensions = append(d.Dimensions, dim)
	if retry > d.RetryAfter {
		d.RetryAfter = retry
	}
}

// identifier returns the bucket identity for dim, or false when the request
// has nothing to count on.
func (l *Limiter) identifier(dim Dimension, req Request) (string, bool) {
	switch dim {
	case DimensionIP:
		return req.IP, req.IP != ""
	case DimensionIPUA:
		return req.IP + "|" + req.UserAgent, req.IP != ""
	default:
		if req.Cookie == "" {
			return "", false
		}
		id, err := l.cookies.verify(req.Cookie)
		if err != nil {
			return "", false
		}
		return id, true
	}
}

// Preflight returns the limiter cookie the client should carry on its next
// submit. A still-valid cookie is handed back unchanged so reloading the
// form cannot reset the cookie window. No counter is seeded here: the HMAC
// signature is the proof of issuance, and Check counts the cookie window
// from its first submit.
func (l *Limiter) Preflight(_ context.Context, scope Scope, req Request) (string, error) {
	if _, ok := l.config.Scopes[scope]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
	if req.Cookie != "" {
		if _, err := l.cookies.verify(req.Cookie); err == nil {
			return req.Cookie, nil
		}
	}
	return l.cookies.mint()
}

// VerifyCookie reports whether value was minted by this limiter.
func (l *Limiter) VerifyCookie(value string) error {
	_, err := l.cookies.verify(value)
	return err
}

// Clear drops every window of every scope.
func (l *Limiter) Clear(ctx context.Context) error {
	if err := l.counter.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return nil
}

func key(scope Scope, dim Dimension, ident string) string {
	sum := sha256.Sum256([]byte(ident))
	return KeyPrefix + string(scope) + ":" + string(dim) + ":" + hex.EncodeToString(sum[:16])
}
