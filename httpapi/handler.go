// Package httpapi exposes the login, registration, session, and admin
// endpoints over HTTP with cookie transport.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/maccas-one/sessionauth"
	"github.com/maccas-one/sessionauth/middleware"
	"github.com/sirupsen/logrus"
)

const (
	maxFormBytes = 16 << 10
	// limiterCookieMaxAge outlives every default cookie window.
	limiterCookieMaxAge = time.Hour
)

// Auth is the part of *sessionauth.Engine the handlers call.
type Auth interface {
	Login(ctx context.Context, username, password string) (*sessionauth.LoginResult, error)
	Register(ctx context.Context, username, password string) (*sessionauth.LoginResult, error)
	Preflight(ctx context.Context, scope sessionauth.Scope) (string, error)
	ValidateSession(ctx context.Context, sessionID string) (*sessionauth.Identity, error)
	User(ctx context.Context, id string) (*sessionauth.User, error)
	Impersonate(ctx context.Context, callerUserID, targetUserID string) (*sessionauth.LoginResult, error)
	ClearRateLimits(ctx context.Context, callerUserID string) error
	SetUserActive(ctx context.Context, callerUserID, targetUserID string, active bool) error
}

var _ Auth = (*sessionauth.Engine)(nil)

// Options configures cookies and proxy handling.
type Options struct {
	SessionCookieName string
	LimiterCookieName string
	CookieSecure      bool
	CookieSameSite    http.SameSite
	TrustProxy        bool
	// MetricsHandler is mounted on GET /metrics when set.
	MetricsHandler http.Handler
	Logger         logrus.FieldLogger
}

// OptionsFromConfig copies the cookie settings out of an Engine config.
func OptionsFromConfig(cfg sessionauth.Config) Options {
	return Options{
		SessionCookieName: cfg.Session.CookieName,
		LimiterCookieName: cfg.RateLimit.CookieName,
		CookieSecure:      cfg.Session.CookieSecure,
		CookieSameSite:    cfg.Session.CookieSameSite,
	}
}

// Handler serves the HTTP surface.
type Handler struct {
	auth Auth
	opts Options
	log  logrus.FieldLogger
}

// NewHandler returns a Handler with defaults filled in.
func NewHandler(auth Auth, opts Options) *Handler {
	if opts.SessionCookieName == "" {
		opts.SessionCookieName = "session-id"
	}
	if opts.LimiterCookieName == "" {
		opts.LimiterCookieName = "rl-id"
	}
	if opts.CookieSameSite == 0 {
		opts.CookieSameSite = http.SameSiteLaxMode
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Handler{auth: auth, opts: opts, log: opts.Logger}
}

// Router builds the gorilla/mux router with request metadata, logging, and
// panic recovery applied to every route.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(
		middleware.Recover(h.log),
		middleware.Logging(h.log),
		middleware.RequestMeta(middleware.MetaOptions{
			TrustProxy:        h.opts.TrustProxy,
			LimiterCookieName: h.opts.LimiterCookieName,
		}),
	)

	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if h.opts.MetricsHandler != nil {
		router.Handle("/metrics", h.opts.MetricsHandler).Methods(http.MethodGet)
	}

	// Anonymous forms
	router.HandleFunc("/login", h.preflight(sessionauth.ScopeLogin)).Methods(http.MethodGet)
	router.HandleFunc("/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/register", h.preflight(sessionauth.ScopeRegister)).Methods(http.MethodGet)
	router.HandleFunc("/register", h.register).Methods(http.MethodPost)

	// Authenticated
	authed := router.NewRoute().Subrouter()
	authed.Use(middleware.RequireSession(h.auth, middleware.GuardOptions{
		CookieName:   h.opts.SessionCookieName,
		CookieSecure: h.opts.CookieSecure,
		Logger:       h.log,
	}))
	authed.HandleFunc("/session", h.currentSession).Methods(http.MethodGet)
	authed.HandleFunc("/users/{userId}/become", h.become).Methods(http.MethodPost)
	authed.HandleFunc("/users/{userId}/active", h.setActive(true)).Methods(http.MethodPost)
	authed.HandleFunc("/users/{userId}/active", h.setActive(false)).Methods(http.MethodDelete)
	authed.HandleFunc("/admin/rate-limits", h.clearRateLimits).Methods(http.MethodDelete)

	return router
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// preflight handles GET /login and GET /register
func (h *Handler) preflight(scope sessionauth.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.auth.Preflight(r.Context(), scope)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     h.opts.LimiterCookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(limiterCookieMaxAge / time.Second),
			HttpOnly: true,
			Secure:   h.opts.CookieSecure,
			SameSite: h.opts.CookieSameSite,
		})
		writeNoContent(w)
	}
}

func (h *Handler) readCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid form")
		return "", "", false
	}
	return r.PostForm.Get("username"), r.PostForm.Get("password"), true
}

// login handles POST /login
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := h.readCredentials(w, r)
	if !ok {
		return
	}

	res, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}

	h.setSessionCookie(w, res)
	writeNoContent(w)
}

// register handles POST /register
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	username, password, ok := h.readCredentials(w, r)
	if !ok {
		return
	}

	res, err := h.auth.Register(r.Context(), username, password)
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}

	h.setSessionCookie(w, res)
	_ = writeJSON(w, http.StatusCreated, map[string]bool{"active": res.Active})
}

type sessionResponse struct {
	UserID             string                  `json:"userId"`
	ImpersonatorUserID string                  `json:"impersonatorUserId,omitempty"`
	ExpiresAt          time.Time               `json:"expiresAt"`
	Username           string                  `json:"username"`
	Roles              []string                `json:"roles"`
	Active             bool                    `json:"active"`
	Config             *sessionauth.UserConfig `json:"config,omitempty"`
}

// currentSession handles GET /session
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromRequest(r)

	u, err := h.auth.User(r.Context(), id.UserID)
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, sessionResponse{
		UserID:             id.UserID,
		ImpersonatorUserID: id.ImpersonatorUserID,
		ExpiresAt:          id.ExpiresAt,
		Username:           u.Username,
		Roles:              u.Roles.Names(),
		Active:             u.Active,
		Config:             u.Config,
	})
}

// become handles POST /users/{userId}/become
func (h *Handler) become(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromRequest(r)
	target := mux.Vars(r)["userId"]

	res, err := h.auth.Impersonate(r.Context(), id.UserID, target)
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}

	h.setSessionCookie(w, res)
	writeNoContent(w)
}

// setActive handles POST and DELETE /users/{userId}/active
func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := middleware.IdentityFromRequest(r)
		target := mux.Vars(r)["userId"]

		if err := h.auth.SetUserActive(r.Context(), id.UserID, target, active); err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeNoContent(w)
	}
}

// clearRateLimits handles DELETE /admin/rate-limits
func (h *Handler) clearRateLimits(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromRequest(r)

	if err := h.auth.ClearRateLimits(r.Context(), id.UserID); err != nil {
		writeEngineError(w, h.log, err)
		return
	}
	writeNoContent(w)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, res *sessionauth.LoginResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.SessionCookieName,
		Value:    res.SessionID,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: h.opts.CookieSameSite,
	})
}
