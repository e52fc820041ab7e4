package session

import (
	"context"
	"errors"
	"time"
)

// Store failures. ErrUnavailable wraps the backend error; the rest describe
// the state of the addressed session.
var (
	ErrNotFound    = errors.New("session not found")
	ErrExpired     = errors.New("session expired")
	ErrRevoked     = errors.New("session revoked")
	ErrUnavailable = errors.New("session store unavailable")
)

// Store is the session persistence contract. RevokeByDigest is the critical
// operation: it must be atomic, so that of N concurrent presentations of the
// same refresh secret exactly one observes the live-to-revoked transition.
type Store interface {
	// Create persists a new session. The caller has already stamped every
	// field including the digest.
	Create(ctx context.Context, sess *Session) error

	// GetByDigest loads the session addressed by the digest, whatever its
	// state. Missing rows yield ErrNotFound.
	GetByDigest(ctx context.Context, digest string) (*Session, error)

	// RevokeByDigest atomically transitions a live session to revoked and
	// returns it as it was at the moment of revocation. Dead sessions yield
	// ErrNotFound, ErrExpired or ErrRevoked without state change, except
	// that an expired row may be deleted on sight.
	RevokeByDigest(ctx context.Context, digest string, now time.Time) (*Session, error)

	// RevokeByID revokes by session ID after checking that the session
	// belongs to credID. A foreign or unknown ID yields ErrNotFound.
	RevokeByID(ctx context.Context, credID, sessionID string, now time.Time) error

	// RevokeAllForCredential revokes every live session of the credential,
	// skipping exceptDigest when non-empty. Returns how many it revoked.
	RevokeAllForCredential(ctx context.Context, credID, exceptDigest string, now time.Time) (int, error)

	// ListActive returns the credential's live sessions, most recently
	// active first.
	ListActive(ctx context.Context, credID string, now time.Time) ([]*Session, error)

	// Touch updates the session's last-activity timestamp. Best effort: a
	// dead session is not an error.
	Touch(ctx context.Context, digest string, at time.Time) error

	// Sweep prunes index entries whose session rows have aged out. Returns
	// the number of entries removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
