package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/careline/authcore/internal"
)

// IssueSingleUse mints an opaque single-use token for the credential and
// purpose. The raw value is returned exactly once; only its digest is
// persisted, overwriting any previous token for the same purpose.
//
// While a live token still has most of its lifetime left, reissue is
// refused with ErrTooSoon. The cutover point is ResendCooldownFraction of
// the TTL, counted from issuance.
func (e *Engine) IssueSingleUse(ctx context.Context, credentialID string, purpose Purpose) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	cred, err := e.credentials.FindByID(ctx, credentialID)
	if err != nil {
		return "", wrapStoreErr(err)
	}
	if cred.Disabled() {
		return "", ErrAccountDisabled
	}

	return e.issueSingleUse(ctx, cred, purpose, time.Now())
}

func (e *Engine) issueSingleUse(ctx context.Context, cred *Credential, purpose Purpose, now time.Time) (string, error) {
	cfg := e.singleUseConfig(purpose)

	if slot := cred.Slot(purpose); slot.Live(now) {
		remaining := slot.ExpiresAt.Sub(now)
		allowedBelow := time.Duration((1 - cfg.ResendCooldownFraction) * float64(cfg.TTL))
		if remaining > allowedBelow {
			return "", ErrTooSoon
		}
	}

	raw, digest, err := internal.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	slot := SingleUseSlot{
		Digest:    internal.DigestHex(digest),
		ExpiresAt: now.Add(cfg.TTL),
	}
	if err := e.credentials.SetSingleUse(ctx, cred.ID, purpose, slot); err != nil {
		return "", wrapStoreErr(err)
	}
	return raw, nil
}

// ConsumeSingleUse validates and burns a single-use token, returning the
// credential it belonged to. Exactly one of N concurrent presentations
// succeeds; the rest report ErrInvalidCredential, the same as a token that
// never existed. An expired-but-matching slot clears on access, so a dead
// digest never lingers until the next sweep.
func (e *Engine) ConsumeSingleUse(ctx context.Context, purpose Purpose, tokenStr string) (*Credential, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	now := time.Now()

	cred, digestHex, err := e.lookupSingleUse(ctx, purpose, tokenStr, now)
	if err != nil {
		if errors.Is(err, ErrExpired) && cred != nil {
			_, _ = e.credentials.ClearSingleUse(ctx, cred.ID, purpose, digestHex)
		}
		return nil, err
	}

	cleared, err := e.credentials.ClearSingleUse(ctx, cred.ID, purpose, digestHex)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if !cleared {
		// Lost the race to a concurrent consumer.
		return nil, ErrInvalidCredential
	}
	return cred, nil
}

// ValidateResetToken checks a password-reset token without burning it, so a
// reset form can reject a dead link before asking for the new password.
func (e *Engine) ValidateResetToken(ctx context.Context, tokenStr string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	_, _, err := e.lookupSingleUse(ctx, PurposePasswordReset, tokenStr, time.Now())
	return err
}

func (e *Engine) lookupSingleUse(ctx context.Context, purpose Purpose, tokenStr string, now time.Time) (*Credential, string, error) {
	digest, err := internal.DigestToken(tokenStr)
	if err != nil {
		return nil, "", ErrInvalidCredential
	}
	digestHex := internal.DigestHex(digest)

	cred, err := e.credentials.FindBySingleUseDigest(ctx, purpose, digestHex)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, "", ErrInvalidCredential
		}
		return nil, "", wrapStoreErr(err)
	}
	if cred.Disabled() {
		return nil, "", ErrAccountDisabled
	}

	slot := cred.Slot(purpose)
	if slot.Digest != digestHex {
		return nil, "", ErrInvalidCredential
	}
	if !slot.Live(now) {
		return cred, digestHex, ErrExpired
	}
	return cred, digestHex, nil
}

// SweepSingleUse clears expired single-use slots across all credentials.
// Expired tokens already fail at use time; the sweep only reclaims storage.
func (e *Engine) SweepSingleUse(ctx context.Context) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	cleared, err := e.credentials.SweepSingleUse(ctx, time.Now())
	if err != nil {
		return cleared, wrapStoreErr(err)
	}
	return cleared, nil
}

func (e *Engine) singleUseConfig(purpose Purpose) SingleUseConfig {
	if purpose == PurposeEmailVerification {
		return e.config.EmailVerification
	}
	return e.config.PasswordReset
}
