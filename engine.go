package sessionauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maccas-one/sessionauth/internal/rate"
	"github.com/maccas-one/sessionauth/jwt"
	"github.com/maccas-one/sessionauth/legacy"
	"github.com/maccas-one/sessionauth/password"
	"github.com/maccas-one/sessionauth/role"
	"github.com/maccas-one/sessionauth/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Scope names a rate-limited form.
type Scope = rate.Scope

const (
	// ScopeLogin is the login form.
	ScopeLogin = rate.ScopeLogin
	// ScopeRegister is the registration form.
	ScopeRegister = rate.ScopeRegister
)

// Engine defines a public type used by sessionauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	store      Store
	sessions   *session.Manager
	jwtManager *jwt.Manager
	passwords  *password.Bcrypt

	limiter *rate.Limiter
	// sharedLimiter is set when windows live in Redis.
	sharedLimiter bool

	legacy     LegacyMigrator
	migrations singleflight.Group

	audit   *auditDispatcher
	metrics *Metrics
	log     logrus.FieldLogger

	now       func() time.Time
	newUserID func() string
}

// Close flushes queued audit events and stops the dispatcher. The Engine
// must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// JWTManager exposes the token manager so downstream services in the same
// process can verify bearer tokens.
func (e *Engine) JWTManager() *jwt.Manager {
	if e == nil {
		return nil
	}
	return e.jwtManager
}

// SessionTTL is the fixed lifetime of every session issued by this Engine.
func (e *Engine) SessionTTL() time.Duration {
	if e == nil || e.sessions == nil {
		return session.DefaultTTL
	}
	return e.sessions.TTL()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.sessions == nil || e.passwords == nil || e.limiter == nil {
		return ErrEngineNotReady
	}
	return nil
}

/*
====================================
RATE LIMITING
====================================
*/

// Preflight describes the preflight operation and its observable behavior.
//
// Preflight returns the anonymous limiter cookie the client should send with
// its next submit of scope. A still-valid cookie from the context is
// returned unchanged.
func (e *Engine) Preflight(ctx context.Context, scope Scope) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	id, err := e.limiter.Preflight(ctx, scope, e.rateRequest(ctx))
	if err != nil {
		if errors.Is(err, rate.ErrUnknownScope) {
			return "", &ValidationError{Field: "scope", Reason: "unknown form"}
		}
		return "", internalError("limiter preflight", err)
	}
	return id, nil
}

func (e *Engine) rateRequest(ctx context.Context) rate.Request {
	return rate.Request{
		IP:        ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Cookie:    LimiterCookieFromContext(ctx),
	}
}

func (e *Engine) checkRate(ctx context.Context, scope Scope) (rate.Decision, error) {
	d, err := e.limiter.Check(ctx, scope, e.rateRequest(ctx))
	if err != nil {
		e.log.WithError(err).WithField("scope", string(scope)).Error("rate limiter unavailable")
		return rate.Decision{}, internalError("rate limit", err)
	}
	return d, nil
}

func (e *Engine) rateLimited(ctx context.Context, scope Scope, d rate.Decision, validation error) error {
	dims := make([]string, 0, len(d.Dimensions))
	for _, dim := range d.Dimensions {
		dims = append(dims, string(dim))
	}
	joined := strings.Join(dims, ",")

	e.log.WithFields(logrus.Fields{
		"scope":       string(scope),
		"dimensions":  joined,
		"ip":          ClientIPFromContext(ctx),
		"retry_after": d.RetryAfter.String(),
	}).Warn("rate limit triggered")

	rlErr := &RateLimitedError{RetryAfter: d.RetryAfter}
	errors.As(validation, &rlErr.Validation)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", rlErr, func() map[string]string {
		return map[string]string{
			"page":        string(scope),
			"dimensions":  joined,
			"identifier":  d.Identifier,
			"retry_after": retrySeconds(d.RetryAfter),
		}
	})
	return rlErr
}

/*
====================================
VALIDATION
====================================
*/

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (e *Engine) validateCredentials(username, pw string) error {
	name := strings.TrimSpace(username)
	if name == "" {
		return &ValidationError{Field: "username", Reason: "required"}
	}
	if utf8.RuneCountInString(name) > e.config.Account.MaxUsernameLength {
		return &ValidationError{Field: "username", Reason: "too long"}
	}
	if strings.ContainsAny(name, "\x00\r\n\t") {
		return &ValidationError{Field: "username", Reason: "contains control characters"}
	}
	if pw == "" {
		return &ValidationError{Field: "password", Reason: "required"}
	}
	if len(pw) > password.MaxPasswordBytes {
		return &ValidationError{Field: "password", Reason: "too long"}
	}
	return nil
}

/*
====================================
LOGIN
====================================
*/

// Login describes the login operation and its observable behavior.
//
// Login authenticates against the local store, falling back to a one-time
// migration from the legacy service for unknown usernames. Every credential
// failure is reported as ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, username, pw string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	decision, err := e.checkRate(ctx, ScopeLogin)
	if err != nil {
		return nil, err
	}
	validationErr := e.validateCredentials(username, pw)
	if decision.Limited {
		e.metricInc(MetricLoginRateLimited)
		return nil, e.rateLimited(ctx, ScopeLogin, decision, validationErr)
	}
	if validationErr != nil {
		return nil, validationErr
	}

	name := normalizeUsername(username)
	user, err := e.store.FindUserByUsername(ctx, name)
	switch {
	case err == nil:
		return e.loginLocal(ctx, user, pw)
	case errors.Is(err, ErrUserNotFound):
		return e.loginLegacy(ctx, strings.TrimSpace(username), pw)
	default:
		return nil, internalError("find user", err)
	}
}

func (e *Engine) loginLocal(ctx context.Context, user *User, pw string) (*LoginResult, error) {
	if !e.verifyPassword(ctx, pw, user.PasswordHash) {
		return nil, e.loginFailed(ctx, user.ID, "password_mismatch")
	}

	var s *session.Session
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx StoreTx) error {
		var err error
		s, err = e.sessions.Create(ctx, tx, user.ID, user.Roles)
		return err
	})
	if err != nil {
		return nil, internalError("create session", err)
	}

	return e.loginSucceeded(ctx, user, s, false), nil
}

func (e *Engine) verifyPassword(ctx context.Context, pw string, hash []byte) bool {
	ctx, cancel := context.WithTimeout(ctx, e.config.Password.Timeout)
	defer cancel()
	return e.passwords.Verify(ctx, pw, hash)
}

func (e *Engine) hashPassword(ctx context.Context, pw string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Password.Timeout)
	defer cancel()
	return e.passwords.Hash(ctx, pw)
}

// loginLegacy provisions an unknown username from the legacy service.
// Concurrent attempts with the same credential share one legacy call; the
// loser of the provisioning race finds the fresh local user and verifies
// against it.
//
// The shared call runs on a context detached from any single caller and
// bounded by Legacy.Timeout, so one caller giving up does not fail the
// others waiting on it.
func (e *Engine) loginLegacy(ctx context.Context, username, pw string) (*LoginResult, error) {
	if e.legacy == nil {
		return nil, e.loginFailed(ctx, "", "unknown_user")
	}

	flight := e.migrations.DoChan(migrationKey(username, pw), func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if e.config.Legacy.Timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, e.config.Legacy.Timeout)
			defer cancel()
		}
		return e.legacy.Migrate(fctx, username, pw)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		e.log.WithError(ctx.Err()).WithField("reason", "legacy_abandoned").Info("legacy migration abandoned by caller")
		return nil, e.loginFailed(ctx, "", "legacy_abandoned")
	}
	if res.Err != nil {
		e.metricInc(MetricLegacyFailure)
		e.log.WithError(res.Err).WithField("reason", "legacy_rejected").Info("legacy migration failed")
		return nil, e.loginFailed(ctx, "", "legacy_rejected")
	}
	acct := res.Val.(*legacy.Account)

	hash, err := e.hashPassword(ctx, pw)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	user := &User{
		ID:           acct.UserID,
		Username:     normalizeUsername(username),
		PasswordHash: hash,
		Roles:        role.NewSet(acct.Role),
		Active:       true,
		CreatedAt:    e.now().UTC(),
	}
	if acct.Config != nil {
		user.Config = &UserConfig{StoreID: acct.Config.StoreID, StoreName: acct.Config.StoreName}
	}

	var s *session.Session
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx StoreTx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		var err error
		s, err = e.sessions.Create(ctx, tx, user.ID, user.Roles)
		return err
	})
	if errors.Is(err, ErrUsernameTaken) {
		e.log.WithField("user_id", user.ID).Info("legacy user provisioned concurrently")
		existing, ferr := e.store.FindUserByUsername(ctx, user.Username)
		if ferr != nil {
			if errors.Is(ferr, ErrUserNotFound) {
				return nil, e.loginFailed(ctx, user.ID, "legacy_id_conflict")
			}
			return nil, internalError("find user", ferr)
		}
		return e.loginLocal(ctx, existing, pw)
	}
	if err != nil {
		return nil, internalError("provision legacy user", err)
	}

	e.metricInc(MetricLegacyMigration)
	e.emitAudit(ctx, auditEventLegacyMigrated, true, user.ID, s.ID, nil, func() map[string]string {
		return map[string]string{"username": user.Username, "role": acct.Role.String()}
	})
	return e.loginSucceeded(ctx, user, s, true), nil
}

func migrationKey(username, pw string) string {
	h := sha256.New()
	h.Write([]byte(normalizeUsername(username)))
	h.Write([]byte{0})
	h.Write([]byte(pw))
	return hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) loginFailed(ctx context.Context, userID, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.log.WithFields(logrus.Fields{"user_id": userID, "reason": reason}).Debug("login failed")
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrInvalidCredentials
}

func (e *Engine) loginSucceeded(ctx context.Context, user *User, s *session.Session, migrated bool) *LoginResult {
	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, s.ID, nil, nil)
	return &LoginResult{
		SessionID:   s.ID,
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
		UserID:      user.ID,
		Roles:       user.Roles,
		Active:      user.Active,
		Migrated:    migrated,
	}
}

/*
====================================
REGISTER
====================================
*/

// Register describes the register operation and its observable behavior.
//
// Register creates a USER account and its first session in one store
// transaction. The account starts inactive when Account.RequireActivation
// is set; the session is issued either way.
func (e *Engine) Register(ctx context.Context, username, pw string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	decision, err := e.checkRate(ctx, ScopeRegister)
	if err != nil {
		return nil, err
	}
	validationErr := e.validateCredentials(username, pw)
	if decision.Limited {
		e.metricInc(MetricRegisterRateLimited)
		return nil, e.rateLimited(ctx, ScopeRegister, decision, validationErr)
	}
	if validationErr != nil {
		return nil, validationErr
	}

	name := normalizeUsername(username)
	if _, err := e.store.FindUserByUsername(ctx, name); err == nil {
		return nil, e.registerDuplicate(ctx, name)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, internalError("find user", err)
	}

	hash, err := e.hashPassword(ctx, pw)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	user := &User{
		ID:           e.newUserID(),
		Username:     name,
		PasswordHash: hash,
		Roles:        role.NewSet(role.User),
		Active:       !e.config.Account.RequireActivation,
		CreatedAt:    e.now().UTC(),
	}

	var s *session.Session
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx StoreTx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		var err error
		s, err = e.sessions.Create(ctx, tx, user.ID, user.Roles)
		return err
	})
	if errors.Is(err, ErrUsernameTaken) {
		return nil, e.registerDuplicate(ctx, name)
	}
	if err != nil {
		return nil, internalError("create user", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, user.ID, s.ID, nil, func() map[string]string {
		return map[string]string{"username": user.Username}
	})

	return &LoginResult{
		SessionID:   s.ID,
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
		UserID:      user.ID,
		Roles:       user.Roles,
		Active:      user.Active,
	}, nil
}

func (e *Engine) registerDuplicate(ctx context.Context, username string) error {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", "", ErrUsernameTaken, func() map[string]string {
		return map[string]string{"username": username}
	})
	return ErrUsernameTaken
}

/*
====================================
SESSIONS
====================================
*/

// ValidateSession describes the validatesession operation and its observable behavior.
//
// ValidateSession re-reads the session record on every call and fails with
// ErrSessionNotFound or ErrSessionExpired. It has no side effects on the
// session.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (*Identity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	s, err := e.sessions.Validate(ctx, e.store, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			e.metricInc(MetricSessionInvalid)
			return nil, err
		}
		return nil, internalError("get session", err)
	}

	return &Identity{
		SessionID:          s.ID,
		UserID:             s.UserID,
		ImpersonatorUserID: s.ImpersonatorUserID,
		ExpiresAt:          s.ExpiresAt,
	}, nil
}

// User returns the current record for id with the password hash cleared.
func (e *Engine) User(ctx context.Context, id string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	u, err := e.store.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError("find user", err)
	}
	out := *u
	out.PasswordHash = nil
	return &out, nil
}
