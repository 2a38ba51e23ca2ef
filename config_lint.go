package sessionauth

import (
	"errors"
	"strings"
	"time"
)

// LintSeverity ranks a LintWarning.
type LintSeverity int

const (
	// LintInfo flags a deliberate but notable choice.
	LintInfo LintSeverity = iota
	// LintWarn flags a setting that weakens a guarantee.
	LintWarn
	// LintHigh flags a setting that defeats a guarantee.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding from Config.Lint.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes lists the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// BySeverity keeps warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	filtered := ws.BySeverity(min)
	if len(filtered) == 0 {
		return nil
	}
	msgs := make([]string, len(filtered))
	for i, w := range filtered {
		msgs[i] = w.Code + ": " + w.Message
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint reports settings that are valid but risky. It never fails; pair it
// with Validate.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Session.CookieSecure {
		add("cookie_insecure", LintHigh, "session cookie is sent over plain HTTP")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above one minute")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		add("hs256_short_key", LintWarn, "hs256 secret shorter than 256 bits")
	}

	rl := c.RateLimit
	if rateScopeDisabled(rl.Login) && rateScopeDisabled(rl.Register) {
		add("rate_limits_disabled", LintHigh, "every rate limit dimension is disabled")
	} else {
		if rateScopeDisabled(rl.Login) {
			add("login_rate_limit_disabled", LintHigh, "login form is not rate limited")
		}
		if rateScopeDisabled(rl.Register) {
			add("register_rate_limit_disabled", LintWarn, "register form is not rate limited")
		}
	}
	if !rl.RequireCookie {
		add("limiter_cookie_optional", LintWarn, "clients can skip the preflight cookie dimension")
	}

	if c.Legacy.BaseURL != "" && !strings.HasPrefix(c.Legacy.BaseURL, "https://") {
		add("legacy_plain_http", LintHigh, "legacy credentials are forwarded without TLS")
	}
	if c.Legacy.Timeout > 30*time.Second {
		add("legacy_timeout_long", LintWarn, "legacy timeout above 30s holds login workers")
	}
	if !c.Account.RequireActivation {
		add("activation_not_required", LintInfo, "registered users are active immediately")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "rate limit breaches and admin actions are not audited")
	}

	return ws
}

func rateScopeDisabled(p RateScopePolicy) bool {
	return p.IP.Limit <= 0 && p.IPUA.Limit <= 0 && p.Cookie.Limit <= 0
}
