package sessionauth

import (
	"context"
	"errors"
	"strconv"

	"github.com/maccas-one/sessionauth/role"
	"github.com/maccas-one/sessionauth/session"
	"github.com/sirupsen/logrus"
)

// requireAdmin re-reads the caller so a role revoked mid-session takes
// effect on the next privileged call.
func (e *Engine) requireAdmin(ctx context.Context, callerID, action string) (*User, error) {
	caller, err := e.store.FindUserByID(ctx, callerID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, internalError("find caller", err)
	}
	if err == nil && caller.Roles.Has(role.Admin) {
		return caller, nil
	}

	e.metricInc(MetricForbidden)
	e.log.WithFields(logrus.Fields{"user_id": callerID, "action": action}).Warn("privileged action forbidden")
	e.emitAudit(ctx, auditEventPrivilegedActionForbidden, false, callerID, "", ErrForbidden, func() map[string]string {
		return map[string]string{"action": action}
	})
	return nil, ErrForbidden
}

// Impersonate describes the impersonate operation and its observable behavior.
//
// Impersonate issues a session for targetUserID on behalf of an ADMIN
// caller. The token carries the union of both role sets and the session
// records the caller as impersonator.
func (e *Engine) Impersonate(ctx context.Context, callerUserID, targetUserID string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := e.requireAdmin(ctx, callerUserID, "impersonate")
	if err != nil {
		return nil, err
	}

	target, err := e.store.FindUserByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError("find target", err)
	}

	roles := target.Roles.Union(caller.Roles)

	var s *session.Session
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx StoreTx) error {
		var err error
		s, err = e.sessions.Impersonate(ctx, tx, caller.ID, target.ID, roles)
		return err
	})
	if err != nil {
		return nil, internalError("create session", err)
	}

	e.metricInc(MetricImpersonation)
	e.metricInc(MetricSessionCreated)
	e.log.WithFields(logrus.Fields{"user_id": target.ID, "impersonator_id": caller.ID}).Info("impersonation session issued")
	e.emitAudit(ctx, auditEventImpersonation, true, target.ID, s.ID, nil, func() map[string]string {
		return map[string]string{"impersonator_id": caller.ID}
	})

	return &LoginResult{
		SessionID:   s.ID,
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
		UserID:      target.ID,
		Roles:       roles,
		Active:      target.Active,
	}, nil
}

// ClearRateLimits drops every limiter window. ADMIN only.
func (e *Engine) ClearRateLimits(ctx context.Context, callerUserID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.requireAdmin(ctx, callerUserID, "clear_rate_limits"); err != nil {
		return err
	}

	if err := e.limiter.Clear(ctx); err != nil {
		return internalError("clear rate limits", err)
	}

	e.metricInc(MetricRateLimitCleared)
	e.log.WithField("user_id", callerUserID).Info("rate limits cleared")
	e.emitAudit(ctx, auditEventRateLimitsCleared, true, callerUserID, "", nil, nil)
	return nil
}

// SetUserActive activates or deactivates targetUserID. ADMIN only. Existing
// sessions of the target are left untouched.
func (e *Engine) SetUserActive(ctx context.Context, callerUserID, targetUserID string, active bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.requireAdmin(ctx, callerUserID, "set_user_active"); err != nil {
		return err
	}

	err := e.store.WithinTx(ctx, func(ctx context.Context, tx StoreTx) error {
		return tx.SetUserActive(ctx, targetUserID, active)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return internalError("set user active", err)
	}

	e.metricInc(MetricAccountActivationChanged)
	e.emitAudit(ctx, auditEventAccountActivationChanged, true, targetUserID, "", nil, func() map[string]string {
		return map[string]string{
			"active":   strconv.FormatBool(active),
			"admin_id": callerUserID,
		}
	})
	return nil
}
