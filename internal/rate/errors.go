package rate

import "errors"

var (
	// ErrCounterUnavailable wraps failures of the backing counter store.
	ErrCounterUnavailable = errors.New("rate counter unavailable")
	// ErrUnknownScope is returned for a scope with no configured policy.
	ErrUnknownScope = errors.New("unknown rate limit scope")
	// ErrInvalidCookie is returned by VerifyCookie for unsigned or tampered values.
	ErrInvalidCookie = errors.New("invalid limiter cookie")
)
