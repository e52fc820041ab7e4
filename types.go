package authcore

import (
	"context"
	"time"
)

// Role is the platform role carried inside access-token claims.
type Role string

const (
	// RoleClient is an end user receiving care.
	RoleClient Role = "client"
	// RoleTherapist is a care provider.
	RoleTherapist Role = "therapist"
	// RoleModerator moderates community content.
	RoleModerator Role = "moderator"
	// RoleAdmin is a platform administrator.
	RoleAdmin Role = "admin"
)

// Purpose selects one of the two single-use token slots on a credential.
type Purpose string

const (
	// PurposePasswordReset is the short-lived reset-link token.
	PurposePasswordReset Purpose = "password_reset"
	// PurposeEmailVerification is the longer-lived verification token.
	PurposeEmailVerification Purpose = "email_verification"
)

// SingleUseSlot holds the persisted half of a single-use token: the digest
// of the raw value and its expiry. The zero value means no live token.
// Uniqueness per (credential, purpose) is maintained by overwriting the slot.
type SingleUseSlot struct {
	Digest    string
	ExpiresAt time.Time
}

// Empty reports whether the slot holds no token.
func (s SingleUseSlot) Empty() bool {
	return s.Digest == ""
}

// Live reports whether the slot holds a token that has not expired at now.
func (s SingleUseSlot) Live(now time.Time) bool {
	return s.Digest != "" && s.ExpiresAt.After(now)
}

// Credential is the auth-relevant projection of a platform user. It is
// created at registration by the owning role service and mutated here only
// by login outcomes, password changes, and single-use token flows.
type Credential struct {
	ID             string
	Email          string
	Role           Role
	PasswordDigest string // empty when the account has no password set yet
	EmailVerified  bool

	FailedLogins int
	LockoutUntil *time.Time
	LastLoginAt  *time.Time

	DeactivatedAt *time.Time

	Reset  SingleUseSlot
	Verify SingleUseSlot
}

// Disabled reports whether the account is deactivated.
func (c *Credential) Disabled() bool {
	return c != nil && c.DeactivatedAt != nil
}

// Slot returns the single-use slot for the given purpose.
func (c *Credential) Slot(purpose Purpose) SingleUseSlot {
	if purpose == PurposeEmailVerification {
		return c.Verify
	}
	return c.Reset
}

// ClientMeta carries per-request client context captured at issuance.
// It feeds the informational device/location labels and is never used for
// authorization decisions.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// TokenPair is the result of issuing or rotating credentials: a short-lived
// signed access token and a long-lived opaque refresh value. The refresh
// value is returned exactly once and stored only as a digest.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// SessionInfo is the display projection of a live session returned by
// ListSessions. Current flags the session matching the caller's own refresh
// credential.
type SessionInfo struct {
	ID           string
	Device       string
	Location     string
	IP           string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	Current      bool
}

// CredentialStore is the abstract contract the engine consumes for
// credential persistence. The platform's datastore layer implements it;
// this core never issues queries of its own.
//
// IncrementFailedLogins must be atomic (a conditional update or a
// transaction): the lockout decision is made from its return value, so a
// read-modify-write race must not be able to skip the threshold.
// ClearSingleUse must clear the slot only when its digest still equals
// ifDigest and report whether it did, which is what makes consumption
// single-fire under concurrent calls.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByID(ctx context.Context, id string) (*Credential, error)

	UpdatePasswordDigest(ctx context.Context, id, digest string) error
	SetLockoutState(ctx context.Context, id string, failedLogins int, until *time.Time) error
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error

	SetSingleUse(ctx context.Context, id string, purpose Purpose, slot SingleUseSlot) error
	FindBySingleUseDigest(ctx context.Context, purpose Purpose, digest string) (*Credential, error)
	ClearSingleUse(ctx context.Context, id string, purpose Purpose, ifDigest string) (bool, error)
	SweepSingleUse(ctx context.Context, now time.Time) (int, error)
}
