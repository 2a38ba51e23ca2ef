package internaldefs

import (
	"github.com/maccas-one/sessionauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "sessionauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: sessionauth.MetricLoginSuccess, Name: "sessionauth_login_success_total", Help: "Logins that produced a session."},
	{ID: sessionauth.MetricLoginFailure, Name: "sessionauth_login_failure_total", Help: "Logins rejected with invalid credentials."},
	{ID: sessionauth.MetricLoginRateLimited, Name: "sessionauth_login_rate_limited_total", Help: "Logins stopped by the rate limiter."},
	{ID: sessionauth.MetricRegisterSuccess, Name: "sessionauth_register_success_total", Help: "Local accounts created."},
	{ID: sessionauth.MetricRegisterDuplicate, Name: "sessionauth_register_duplicate_total", Help: "Registrations rejected because the username exists."},
	{ID: sessionauth.MetricRegisterRateLimited, Name: "sessionauth_register_rate_limited_total", Help: "Registrations stopped by the rate limiter."},
	{ID: sessionauth.MetricLegacyMigration, Name: "sessionauth_legacy_migration_total", Help: "Users provisioned from the legacy service."},
	{ID: sessionauth.MetricLegacyFailure, Name: "sessionauth_legacy_failure_total", Help: "Legacy migrations that were rejected or failed."},
	{ID: sessionauth.MetricSessionCreated, Name: "sessionauth_session_created_total", Help: "Sessions persisted."},
	{ID: sessionauth.MetricSessionInvalid, Name: "sessionauth_session_invalid_total", Help: "Validations of a missing or expired session."},
	{ID: sessionauth.MetricImpersonation, Name: "sessionauth_impersonation_total", Help: "Impersonation sessions issued."},
	{ID: sessionauth.MetricForbidden, Name: "sessionauth_forbidden_total", Help: "Privileged calls by non-admin callers."},
	{ID: sessionauth.MetricRateLimitCleared, Name: "sessionauth_rate_limit_cleared_total", Help: "Administrative rate limiter resets."},
	{ID: sessionauth.MetricAccountActivationChanged, Name: "sessionauth_account_activation_changed_total", Help: "Administrative activation changes."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionauth.MetricValidateLatency, Name: "sessionauth_validate_latency_seconds", Help: "ValidateSession latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for everything above the last bound.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// without native histogram bounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
