// Package session persists the server-side refresh sessions. A session is
// addressed by the SHA-256 digest of its refresh secret; the raw secret is
// never stored. Revoked and expired rows stay visible for a retention window
// so audits can reconstruct what happened, then age out via key TTLs.
package session

import "time"

// Session is one device login. RefreshDigest is the lowercase hex SHA-256 of
// the refresh secret and doubles as the primary key.
type Session struct {
	ID            string
	CredentialID  string
	RefreshDigest string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	LastActivity  time.Time
	RevokedAt     *time.Time
	IP            string
	UserAgent     string
	Device        string
	Location      string
}

// Live reports whether the session is usable at the given instant: not
// revoked and not past its expiry.
func (s *Session) Live(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
