package authcore

import "errors"

var (
	// ErrInvalidCredential covers unknown identities, wrong secrets, and
	// unknown or garbled tokens. The cases are deliberately
	// indistinguishable so callers cannot probe for account existence.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpired indicates a token or session past its validity window.
	ErrExpired = errors.New("credential expired")
	// ErrRevoked indicates a refresh credential that was already rotated or
	// explicitly revoked.
	ErrRevoked = errors.New("credential revoked")
	// ErrAccountLocked indicates the account is inside an active lockout
	// window triggered by repeated failed logins.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled indicates a deactivated account.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountUnverified indicates login was refused because the email
	// address has not been verified yet.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrTooSoon indicates a single-use token reissue inside the resend
	// cooldown window.
	ErrTooSoon = errors.New("token reissued too soon")
	// ErrWeakPassword indicates a new password violating the strength policy.
	ErrWeakPassword = errors.New("weak password")
	// ErrUnavailable wraps store I/O failures. The engine never retries;
	// retry policy belongs to the caller.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned from calls on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrCredentialNotFound is the sentinel a CredentialStore implementation
	// returns for lookups that match nothing. The engine maps it to
	// ErrInvalidCredential (or silence) at its boundary.
	ErrCredentialNotFound = errors.New("credential not found")
)
