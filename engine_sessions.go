package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careline/authcore/device"
	"github.com/careline/authcore/internal"
	"github.com/careline/authcore/session"
)

// Issue creates a fresh session and token pair for a credential that was
// authenticated out of band, for example by an identity-provider callback.
func (e *Engine) Issue(ctx context.Context, credentialID string, meta ClientMeta) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	cred, err := e.credentials.FindByID(ctx, credentialID)
	if err != nil {
		return TokenPair{}, wrapStoreErr(err)
	}
	if cred.Disabled() {
		return TokenPair{}, ErrAccountDisabled
	}

	return e.issuePair(ctx, cred, meta, time.Now())
}

// issuePair mints the access token, generates the opaque refresh value and
// persists the session row. The raw refresh value exists only in the
// returned pair.
func (e *Engine) issuePair(ctx context.Context, cred *Credential, meta ClientMeta, now time.Time) (TokenPair, error) {
	raw, digest, err := internal.NewOpaqueToken()
	if err != nil {
		return TokenPair{}, err
	}

	label := device.Classify(meta.UserAgent, meta.IP)
	sess := &session.Session{
		ID:            uuid.NewString(),
		CredentialID:  cred.ID,
		RefreshDigest: internal.DigestHex(digest),
		IssuedAt:      now,
		ExpiresAt:     now.Add(e.config.Session.RefreshTTL),
		LastActivity:  now,
		IP:            meta.IP,
		UserAgent:     meta.UserAgent,
		Device:        label.Device,
		Location:      label.Location,
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return TokenPair{}, err
	}

	access, expiresAt, err := e.signer.Sign(cred.ID, cred.Email, string(cred.Role), now)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricSessionCreated)
	return TokenPair{
		AccessToken:     access,
		RefreshToken:    raw,
		AccessExpiresAt: expiresAt,
	}, nil
}

// Refresh rotates a refresh credential: the presented value is atomically
// revoked and a fresh pair is issued. Of N concurrent presentations of the
// same value exactly one wins; the rest observe ErrRevoked. A value that was
// already rotated earlier counts as reuse and revokes every session of the
// credential.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	now := time.Now()

	digest, err := internal.DigestToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, ErrInvalidCredential
	}
	digestHex := internal.DigestHex(digest)

	revoked, err := e.sessions.RevokeByDigest(ctx, digestHex, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			e.metricInc(MetricRefreshFailure)
			return TokenPair{}, ErrInvalidCredential
		case errors.Is(err, session.ErrExpired):
			e.metricInc(MetricRefreshFailure)
			return TokenPair{}, ErrExpired
		case errors.Is(err, session.ErrRevoked):
			e.handleRefreshReuse(ctx, digestHex, meta, now)
			return TokenPair{}, ErrRevoked
		default:
			e.metricInc(MetricRefreshFailure)
			return TokenPair{}, err
		}
	}

	cred, err := e.credentials.FindByID(ctx, revoked.CredentialID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, wrapStoreErr(err)
	}
	if cred.Disabled() {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType:    AuditRefreshFailure,
			CredentialID: cred.ID,
			SessionID:    revoked.ID,
			IP:           meta.IP,
			Error:        ErrAccountDisabled.Error(),
		})
		return TokenPair{}, ErrAccountDisabled
	}

	pair, err := e.issuePair(ctx, cred, meta, now)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditRefreshSuccess,
		CredentialID: cred.ID,
		SessionID:    revoked.ID,
		IP:           meta.IP,
		Success:      true,
	})
	return pair, nil
}

// handleRefreshReuse responds to a second presentation of an already-rotated
// value. The legitimate holder or a thief has the session's successor, and
// there is no way to tell which, so every session of the credential goes.
func (e *Engine) handleRefreshReuse(ctx context.Context, digestHex string, meta ClientMeta, now time.Time) {
	e.metricInc(MetricRefreshReuseDetected)
	e.metricInc(MetricRefreshFailure)

	sess, err := e.sessions.GetByDigest(ctx, digestHex)
	if err != nil {
		return
	}
	revoked, err := e.sessions.RevokeAllForCredential(ctx, sess.CredentialID, "", now)
	if err == nil {
		e.metrics.Add(MetricSessionRevoked, uint64(revoked))
	}
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditRefreshReuse,
		CredentialID: sess.CredentialID,
		SessionID:    sess.ID,
		IP:           meta.IP,
		Error:        ErrRevoked.Error(),
	})
}

// Revoke ends the session behind the presented refresh value. Revoking a
// session that already ended is not an error.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	now := time.Now()

	digest, err := internal.DigestToken(refreshToken)
	if err != nil {
		return ErrInvalidCredential
	}

	revoked, err := e.sessions.RevokeByDigest(ctx, internal.DigestHex(digest), now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrRevoked):
			return nil
		case errors.Is(err, session.ErrNotFound):
			return ErrInvalidCredential
		default:
			return err
		}
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditLogout,
		CredentialID: revoked.CredentialID,
		SessionID:    revoked.ID,
		Success:      true,
	})
	return nil
}

// RevokeAll ends every live session of a credential and returns how many it
// ended.
func (e *Engine) RevokeAll(ctx context.Context, credentialID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.sessions.RevokeAllForCredential(ctx, credentialID, "", time.Now())
	if err != nil {
		return revoked, err
	}

	e.metricInc(MetricLogoutAll)
	e.metrics.Add(MetricSessionRevoked, uint64(revoked))
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditLogoutAll,
		CredentialID: credentialID,
		Success:      true,
	})
	return revoked, nil
}

// ListSessions returns the credential's live sessions, most recently active
// first. When currentRefreshToken is non-empty, the matching entry is
// flagged as current.
func (e *Engine) ListSessions(ctx context.Context, credentialID, currentRefreshToken string) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	currentDigest := ""
	if currentRefreshToken != "" {
		if digest, err := internal.DigestToken(currentRefreshToken); err == nil {
			currentDigest = internal.DigestHex(digest)
		}
	}

	sessions, err := e.sessions.ListActive(ctx, credentialID, time.Now())
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, SessionInfo{
			ID:           sess.ID,
			Device:       sess.Device,
			Location:     sess.Location,
			IP:           sess.IP,
			IssuedAt:     sess.IssuedAt,
			ExpiresAt:    sess.ExpiresAt,
			LastActivity: sess.LastActivity,
			Current:      sess.RefreshDigest == currentDigest,
		})
	}
	return infos, nil
}

// Terminate ends one session by ID, on behalf of its owning credential. It
// reports whether a live session was actually ended: a session that does not
// exist under the credential, or that already ended, yields false without an
// error.
func (e *Engine) Terminate(ctx context.Context, credentialID, sessionID string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}

	err := e.sessions.RevokeByID(ctx, credentialID, sessionID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound),
			errors.Is(err, session.ErrExpired),
			errors.Is(err, session.ErrRevoked):
			return false, nil
		default:
			return false, err
		}
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditSessionTerminated,
		CredentialID: credentialID,
		SessionID:    sessionID,
		Success:      true,
	})
	return true, nil
}

// TerminateOthers ends every session of the credential except the one behind
// currentRefreshToken. An empty token means no session is spared. Returns how
// many sessions it ended.
func (e *Engine) TerminateOthers(ctx context.Context, credentialID, currentRefreshToken string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	exceptDigest := ""
	if currentRefreshToken != "" {
		if digest, err := internal.DigestToken(currentRefreshToken); err == nil {
			exceptDigest = internal.DigestHex(digest)
		}
	}

	revoked, err := e.sessions.RevokeAllForCredential(ctx, credentialID, exceptDigest, time.Now())
	if err != nil {
		return revoked, err
	}

	e.metrics.Add(MetricSessionRevoked, uint64(revoked))
	e.emitAudit(ctx, AuditEvent{
		EventType:    AuditLogoutAll,
		CredentialID: credentialID,
		Success:      true,
		Metadata:     map[string]string{"scope": "others"},
	})
	return revoked, nil
}

// TouchActivity stamps last activity on the session behind the refresh
// value. Best effort: unknown or dead sessions are ignored.
func (e *Engine) TouchActivity(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	digest, err := internal.DigestToken(refreshToken)
	if err != nil {
		return nil
	}
	return e.sessions.Touch(ctx, internal.DigestHex(digest), time.Now())
}

// SweepSessions prunes aged-out session index entries. Run it periodically;
// frequency only affects how long dead entries linger.
func (e *Engine) SweepSessions(ctx context.Context) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.sessions.Sweep(ctx, time.Now())
	if err != nil {
		return removed, err
	}
	e.metrics.Add(MetricSessionSwept, uint64(removed))
	return removed, nil
}
