package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/careline/authcore/internal"
)

// ChangePassword verifies the current password and installs a new one.
// Every other session of the credential is revoked; when
// currentRefreshToken is non-empty, the session behind it survives.
func (e *Engine) ChangePassword(ctx context.Context, credentialID, oldPassword, newPassword, currentRefreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	cred, err := e.credentials.FindByID(ctx, credentialID)
	if err != nil {
		return wrapStoreErr(err)
	}
	if cred.Disabled() {
		return ErrAccountDisabled
	}

	if cred.PasswordDigest == "" {
		e.metricInc(MetricPasswordChangeFailure)
		return ErrInvalidCredential
	}
	ok, err := e.hasher.Verify(oldPassword, cred.PasswordDigest)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType:    AuditPasswordChanged,
			CredentialID: cred.ID,
			Error:        ErrInvalidCredential.Error(),
		})
		return ErrInvalidCredential
	}

	if err := e.strength.Validate(newPassword); err != nil {
		e.metricInc(MetricWeakPasswordRejected)
		e.metricInc(MetricPasswordChangeFailure)
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	if err := e.installPassword(ctx, cred, newPassword); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}

	exceptDigest := ""
	if currentRefreshToken != "" {
		if digest, err := internal.DigestToken(currentRefreshToken); err == nil {
			exceptDigest = internal.DigestHex(digest)
		}
	}
	revoked, err := e.sessions.RevokeAllForCredential(ctx, cred.ID, exceptDigest, time.Now())
	if err != nil {
		return err
	}
	e.metrics.Add(MetricSessionRevoked, uint64(revoked))

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditPasswordChanged,
		CredentialID: cred.ID,
		Success:      true,
	})
	return nil
}
