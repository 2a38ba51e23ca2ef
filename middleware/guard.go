package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maccas-one/sessionauth"
	"github.com/sirupsen/logrus"
)

// SessionValidator is the part of *sessionauth.Engine the guard needs.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (*sessionauth.Identity, error)
}

// GuardOptions configures RequireSession.
type GuardOptions struct {
	CookieName   string
	CookieSecure bool
	Logger       logrus.FieldLogger
}

// RequireSession rejects requests without a live session with 401. A
// missing and an expired session look the same to the client; the stale
// cookie is cleared.
func RequireSession(v SessionValidator, opts GuardOptions) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "session-id"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeError(w, http.StatusUnauthorized, sessionauth.ErrUnauthenticated.Error())
				return
			}

			c, err := r.Cookie(opts.CookieName)
			if err != nil || c.Value == "" {
				writeError(w, http.StatusUnauthorized, sessionauth.ErrUnauthenticated.Error())
				return
			}

			id, err := v.ValidateSession(r.Context(), c.Value)
			if err != nil {
				if errors.Is(err, sessionauth.ErrSessionNotFound) || errors.Is(err, sessionauth.ErrSessionExpired) {
					http.SetCookie(w, &http.Cookie{
						Name:     opts.CookieName,
						Value:    "",
						Path:     "/",
						MaxAge:   -1,
						HttpOnly: true,
						Secure:   opts.CookieSecure,
						SameSite: http.SameSiteLaxMode,
					})
					writeError(w, http.StatusUnauthorized, sessionauth.ErrUnauthenticated.Error())
					return
				}
				opts.Logger.WithError(err).Error("session validation failed")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(sessionauth.WithIdentity(r.Context(), id)))
		})
	}
}

// IdentityFromRequest returns the identity attached by RequireSession.
func IdentityFromRequest(r *http.Request) (*sessionauth.Identity, bool) {
	return sessionauth.IdentityFromContext(r.Context())
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
