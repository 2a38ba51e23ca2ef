package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/maccas-one/sessionauth"
)

// MetaOptions configures RequestMeta.
type MetaOptions struct {
	// TrustProxy takes the client IP from the first X-Forwarded-For hop.
	// Only enable it behind a proxy that overwrites the header.
	TrustProxy        bool
	LimiterCookieName string
}

// RequestMeta stores the client IP, user agent, and limiter cookie in the
// request context.
func RequestMeta(opts MetaOptions) func(http.Handler) http.Handler {
	if opts.LimiterCookieName == "" {
		opts.LimiterCookieName = "rl-id"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := sessionauth.WithClientIP(r.Context(), ClientIP(r, opts.TrustProxy))
			ctx = sessionauth.WithUserAgent(ctx, r.UserAgent())
			if c, err := r.Cookie(opts.LimiterCookieName); err == nil {
				ctx = sessionauth.WithLimiterCookie(ctx, c.Value)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the connection address, or the first forwarded hop when
// trustProxy is set and it parses as an IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	connIP := remoteIP(r.RemoteAddr)
	if !trustProxy {
		return connIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	return connIP
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// no port
		return remoteAddr
	}
	return host
}
