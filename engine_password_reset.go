package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RequestPasswordReset mints a reset token for the account behind email and
// returns the raw value for delivery. An unknown email returns ("", nil) so
// the caller's response cannot reveal whether the account exists.
//
// While a previously issued token still has most of its lifetime left the
// request is refused with ErrTooSoon; once the token nears expiry a new one
// replaces it.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now()

	cred, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return "", nil
		}
		return "", wrapStoreErr(err)
	}
	if cred.Disabled() {
		return "", ErrAccountDisabled
	}

	raw, err := e.issueSingleUse(ctx, cred, PurposePasswordReset, now)
	if err != nil {
		if errors.Is(err, ErrTooSoon) {
			e.metricInc(MetricPasswordResetThrottled)
			e.emitAudit(ctx, AuditEvent{
				EventType:    AuditResetThrottled,
				CredentialID: cred.ID,
				Error:        ErrTooSoon.Error(),
			})
		}
		return "", err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditResetRequested,
		CredentialID: cred.ID,
		Success:      true,
	})
	return raw, nil
}

// ResetPassword burns a reset token and installs the new password. On
// success the failure counter and any lockout clear, and every session of
// the credential is revoked.
func (e *Engine) ResetPassword(ctx context.Context, tokenStr, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.strength.Validate(newPassword); err != nil {
		e.metricInc(MetricWeakPasswordRejected)
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	cred, err := e.ConsumeSingleUse(ctx, PurposePasswordReset, tokenStr)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditResetFailed,
			Error:     errString(err),
		})
		return err
	}

	if err := e.installPassword(ctx, cred, newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return err
	}

	// A reset proves control of the mailbox; any lockout no longer applies.
	count, until := e.lockout.ResetOnSuccess()
	if err := e.credentials.SetLockoutState(ctx, cred.ID, count, until); err != nil {
		return wrapStoreErr(err)
	}

	revoked, err := e.sessions.RevokeAllForCredential(ctx, cred.ID, "", time.Now())
	if err != nil {
		return err
	}
	e.metrics.Add(MetricSessionRevoked, uint64(revoked))

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditResetCompleted,
		CredentialID: cred.ID,
		Success:      true,
	})
	return nil
}

// installPassword enforces the no-reuse rule, hashes and persists.
func (e *Engine) installPassword(ctx context.Context, cred *Credential, newPassword string) error {
	if cred.PasswordDigest != "" {
		same, err := e.hasher.Verify(newPassword, cred.PasswordDigest)
		if err == nil && same {
			e.metricInc(MetricWeakPasswordRejected)
			return fmt.Errorf("%w: new password must differ from the current one", ErrWeakPassword)
		}
	}

	digest, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.credentials.UpdatePasswordDigest(ctx, cred.ID, digest); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}
