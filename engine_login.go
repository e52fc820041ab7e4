package authcore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Authenticate verifies an email/password pair and, on success, issues a
// session and token pair. Unknown emails, wrong passwords and deactivated
// accounts are indistinguishable from the caller's side.
//
// Repeated failures feed the lockout state machine: once the failure counter
// reaches the configured threshold the account locks for the configured
// duration, and the locking attempt itself reports ErrAccountLocked. Locks
// clear lazily on the first attempt after the window elapses.
func (e *Engine) Authenticate(ctx context.Context, email, passwd string, meta ClientMeta) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}()

	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now()

	cred, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return TokenPair{}, e.loginFailure(ctx, "", meta, ErrInvalidCredential)
		}
		return TokenPair{}, wrapStoreErr(err)
	}

	// Deactivated accounts behave exactly like unknown ones.
	if cred.Disabled() {
		return TokenPair{}, e.loginFailure(ctx, cred.ID, meta, ErrInvalidCredential)
	}

	if e.lockout.Locked(cred.LockoutUntil, now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, AuditEvent{
			EventType:    AuditLoginFailure,
			CredentialID: cred.ID,
			IP:           meta.IP,
			Error:        ErrAccountLocked.Error(),
		})
		return TokenPair{}, ErrAccountLocked
	}
	if e.lockout.Stale(cred.LockoutUntil, now) {
		// Lazy unlock clears only the window; the counter resets on success.
		if err := e.credentials.SetLockoutState(ctx, cred.ID, cred.FailedLogins, nil); err != nil {
			return TokenPair{}, wrapStoreErr(err)
		}
		cred.LockoutUntil = nil
	}

	// Accounts provisioned through an external identity provider have no
	// password; their failures never feed the lockout counter.
	if cred.PasswordDigest == "" {
		return TokenPair{}, e.loginFailure(ctx, cred.ID, meta, ErrInvalidCredential)
	}

	ok, err := e.hasher.Verify(passwd, cred.PasswordDigest)
	if err != nil {
		return TokenPair{}, e.loginFailure(ctx, cred.ID, meta, ErrInvalidCredential)
	}
	if !ok {
		return TokenPair{}, e.recordFailedLogin(ctx, cred, meta, now)
	}

	if e.config.RequireVerifiedEmail && !cred.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType:    AuditLoginFailure,
			CredentialID: cred.ID,
			IP:           meta.IP,
			Error:        ErrAccountUnverified.Error(),
		})
		return TokenPair{}, ErrAccountUnverified
	}

	if cred.FailedLogins > 0 || cred.LockoutUntil != nil {
		count, until := e.lockout.ResetOnSuccess()
		if err := e.credentials.SetLockoutState(ctx, cred.ID, count, until); err != nil {
			return TokenPair{}, wrapStoreErr(err)
		}
	}
	if err := e.credentials.RecordLogin(ctx, cred.ID, now); err != nil {
		return TokenPair{}, wrapStoreErr(err)
	}

	pair, err := e.issuePair(ctx, cred, meta, now)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditLoginSuccess,
		CredentialID: cred.ID,
		IP:           meta.IP,
		Success:      true,
	})
	return pair, nil
}

// recordFailedLogin advances the lockout state machine after a wrong
// password. The store increment is atomic, so concurrent failures cannot
// skip over the threshold.
func (e *Engine) recordFailedLogin(ctx context.Context, cred *Credential, meta ClientMeta, now time.Time) error {
	count, err := e.credentials.IncrementFailedLogins(ctx, cred.ID)
	if err != nil {
		return wrapStoreErr(err)
	}

	_, until := e.lockout.NextOnFailure(count, now)
	if until == nil {
		return e.loginFailure(ctx, cred.ID, meta, ErrInvalidCredential)
	}

	if err := e.credentials.SetLockoutState(ctx, cred.ID, count, until); err != nil {
		return wrapStoreErr(err)
	}
	e.metricInc(MetricLoginFailure)
	e.metricInc(MetricAccountLocked)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditAccountLocked,
		CredentialID: cred.ID,
		IP:           meta.IP,
		Error:        ErrAccountLocked.Error(),
		Metadata:     map[string]string{"failed_logins": strconv.Itoa(count)},
	})
	return ErrAccountLocked
}

func (e *Engine) loginFailure(ctx context.Context, credentialID string, meta ClientMeta, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditLoginFailure,
		CredentialID: credentialID,
		IP:           meta.IP,
		Error:        errString(err),
	})
	return err
}
