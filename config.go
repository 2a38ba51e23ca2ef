package sessionauth

import (
	"errors"
	"net/http"
	"time"

	"github.com/maccas-one/sessionauth/internal/rate"
	"github.com/maccas-one/sessionauth/jwt"
	"github.com/maccas-one/sessionauth/password"
	"github.com/maccas-one/sessionauth/session"
)

// Config defines a public type used by sessionauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	Legacy    LegacyConfig
	RateLimit RateLimitConfig
	Account   AccountConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by sessionauth APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Subject       string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by sessionauth APIs.
type SessionConfig struct {
	// TTL is fixed at issuance; sessions never slide.
	TTL        time.Duration
	CookieName string
	// CookieSecure should only be turned off for plain-HTTP local development.
	CookieSecure   bool
	CookieSameSite http.SameSite
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by sessionauth APIs.
type PasswordConfig struct {
	Cost    int
	Timeout time.Duration
}

/*
====================================
LEGACY CONFIG
====================================
*/

// LegacyConfig defines a public type used by sessionauth APIs.
//
// An empty BaseURL disables migration: unknown usernames are then plain
// invalid credentials.
type LegacyConfig struct {
	BaseURL     string
	Timeout     time.Duration
	FetchConfig bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy allows Limit attempts per Window. A zero Limit disables the dimension.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// RateScopePolicy holds the per-dimension policies for one form.
type RateScopePolicy struct {
	IP     RatePolicy
	IPUA   RatePolicy
	Cookie RatePolicy
}

// RateLimitConfig defines a public type used by sessionauth APIs.
type RateLimitConfig struct {
	Login    RateScopePolicy
	Register RateScopePolicy
	// RequireCookie makes a missing or forged preflight cookie count as an
	// exceeded cookie dimension.
	RequireCookie bool
	CookieSecret  []byte
	CookieName    string
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig defines a public type used by sessionauth APIs.
type AccountConfig struct {
	// RequireActivation creates registered users inactive until an admin
	// activates them.
	RequireActivation bool
	MaxUsernameLength int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by sessionauth APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by sessionauth APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	defaultSessionCookieName = "session-id"
	defaultLimiterCookieName = "rl-id"
	defaultPasswordTimeout   = 5 * time.Second
	defaultMaxUsernameLength = 64
)

func defaultConfig() Config {
	login := rate.DefaultLoginPolicy()
	register := rate.DefaultRegisterPolicy()
	return Config{
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        jwt.DefaultIssuer,
			Audience:      jwt.DefaultAudience,
			Subject:       jwt.DefaultSubject,
		},
		Session: SessionConfig{
			TTL:            session.DefaultTTL,
			CookieName:     defaultSessionCookieName,
			CookieSecure:   true,
			CookieSameSite: http.SameSiteLaxMode,
		},
		Password: PasswordConfig{
			Cost:    password.DefaultCost,
			Timeout: defaultPasswordTimeout,
		},
		Legacy: LegacyConfig{
			Timeout:     10 * time.Second,
			FetchConfig: true,
		},
		RateLimit: RateLimitConfig{
			Login:         fromRateScope(login),
			Register:      fromRateScope(register),
			RequireCookie: true,
			CookieName:    defaultLimiterCookieName,
		},
		Account: AccountConfig{
			RequireActivation: true,
			MaxUsernameLength: defaultMaxUsernameLength,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the production defaults. JWT.PrivateKey and
// RateLimit.CookieSecret must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.RateLimit.CookieSecret = cloneBytes(cfg.RateLimit.CookieSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func fromRateScope(p rate.ScopePolicy) RateScopePolicy {
	return RateScopePolicy{
		IP:     RatePolicy{Limit: p.IP.Limit, Window: p.IP.Window},
		IPUA:   RatePolicy{Limit: p.IPUA.Limit, Window: p.IPUA.Window},
		Cookie: RatePolicy{Limit: p.Cookie.Limit, Window: p.Cookie.Window},
	}
}

func (p RateScopePolicy) internal() rate.ScopePolicy {
	return rate.ScopePolicy{
		IP:     rate.Policy{Limit: p.IP.Limit, Window: p.IP.Window},
		IPUA:   rate.Policy{Limit: p.IPUA.Limit, Window: p.IPUA.Window},
		Cookie: rate.Policy{Limit: p.Cookie.Limit, Window: p.Cookie.Window},
	}
}

func (c RateLimitConfig) internal() rate.Config {
	return rate.Config{
		Scopes: map[rate.Scope]rate.ScopePolicy{
			rate.ScopeLogin:    c.Login.internal(),
			rate.ScopeRegister: c.Register.internal(),
		},
		RequireCookie: c.RequireCookie,
		CookieSecret:  c.CookieSecret,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	switch c.JWT.SigningMethod {
	case string(jwt.MethodHS256):
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("JWT PrivateKey is required for hs256")
		}
	case string(jwt.MethodEd25519):
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("JWT PrivateKey is required for ed25519 signing")
		}
	default:
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Session
	if c.Session.TTL != session.DefaultTTL {
		return errors.New("Session TTL must be 7 days")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName is required")
	}

	// Password
	if c.Password.Cost != 0 && (c.Password.Cost < 4 || c.Password.Cost > 31) {
		return errors.New("Password Cost must be within [4, 31]")
	}
	if c.Password.Timeout <= 0 {
		return errors.New("Password Timeout must be > 0")
	}

	// Legacy
	if c.Legacy.BaseURL != "" && c.Legacy.Timeout <= 0 {
		return errors.New("Legacy Timeout must be > 0 when migration is enabled")
	}

	// Rate limit
	if err := c.RateLimit.internal().Validate(); err != nil {
		return err
	}
	if c.RateLimit.CookieName == "" || c.RateLimit.CookieName == c.Session.CookieName {
		return errors.New("RateLimit CookieName must be set and differ from the session cookie")
	}

	// Account
	if c.Account.MaxUsernameLength <= 0 {
		return errors.New("Account MaxUsernameLength must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
