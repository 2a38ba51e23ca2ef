package sessionauth

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
// The server logs it once at startup.
type SecurityReport struct {
	SigningAlgorithm       string
	SessionTTL             time.Duration
	CookieSecure           bool
	BcryptCost             int
	LegacyMigrationEnabled bool
	LegacyTimeout          time.Duration
	LoginRateLimited       bool
	RegisterRateLimited    bool
	LimiterCookieRequired  bool
	SharedRateLimitStore   bool
	ActivationRequired     bool
	AuditEnabled           bool
	LintCodes              []string
}

// SecurityReport describes the securityreport operation and its observable behavior.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return SecurityReport{
		SigningAlgorithm:       cfg.JWT.SigningMethod,
		SessionTTL:             cfg.Session.TTL,
		CookieSecure:           cfg.Session.CookieSecure,
		BcryptCost:             e.passwords.Cost(),
		LegacyMigrationEnabled: e.legacy != nil,
		LegacyTimeout:          cfg.Legacy.Timeout,
		LoginRateLimited:       !rateScopeDisabled(cfg.RateLimit.Login),
		RegisterRateLimited:    !rateScopeDisabled(cfg.RateLimit.Register),
		LimiterCookieRequired:  cfg.RateLimit.RequireCookie,
		SharedRateLimitStore:   e.sharedLimiter,
		ActivationRequired:     cfg.Account.RequireActivation,
		AuditEnabled:           e.audit != nil,
		LintCodes:              cfg.Lint().Codes(),
	}
}
