package sessionauth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type limiterCookieContextKey struct{}
type identityContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine keys the
// ip and ip_ua rate limit dimensions on it and records it in audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for the ip_ua
// rate limit dimension.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithLimiterCookie attaches the anonymous limiter cookie value issued by
// [Engine.Preflight].
func WithLimiterCookie(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, limiterCookieContextKey{}, value)
}

// WithIdentity attaches a validated identity, typically by middleware.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

// ClientIPFromContext returns the address set by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// UserAgentFromContext returns the value set by WithUserAgent.
func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// LimiterCookieFromContext returns the value set by WithLimiterCookie.
func LimiterCookieFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	cookie, _ := ctx.Value(limiterCookieContextKey{}).(string)
	return cookie
}
