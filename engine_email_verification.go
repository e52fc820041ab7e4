package authcore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RequestEmailVerification mints a verification token for the account behind
// email and returns the raw value for delivery. Unknown emails and accounts
// that are already verified return ("", nil); neither case is worth
// signaling to the caller's user.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) (string, error) {
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
	if cred.EmailVerified {
		return "", nil
	}

	raw, err := e.issueSingleUse(ctx, cred, PurposeEmailVerification, now)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditVerifyRequested,
		CredentialID: cred.ID,
		Success:      true,
	})
	return raw, nil
}

// ConfirmEmailVerification burns a verification token and marks the
// credential's email address verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, tokenStr string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	cred, err := e.ConsumeSingleUse(ctx, PurposeEmailVerification, tokenStr)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditVerifyFailed,
			Error:     errString(err),
		})
		return err
	}

	if err := e.credentials.MarkEmailVerified(ctx, cred.ID); err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return wrapStoreErr(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditVerifyCompleted,
		CredentialID: cred.ID,
		Success:      true,
	})
	return nil
}
