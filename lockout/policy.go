// Package lockout implements the account-lockout decision logic as pure
// functions over values the caller already holds. It performs no I/O; the
// engine applies the transitions it computes through the credential store.
package lockout

import "time"

// Policy holds the lockout thresholds. The zero value locks nothing;
// use Default for production settings.
type Policy struct {
	MaxAttempts int
	Duration    time.Duration
}

// Default returns the production policy: five attempts, thirty minutes.
func Default() Policy {
	return Policy{MaxAttempts: 5, Duration: 30 * time.Minute}
}

// Locked reports whether the account is inside an active lockout window.
// A nil or past lockoutUntil never locks.
func (p Policy) Locked(lockoutUntil *time.Time, now time.Time) bool {
	return lockoutUntil != nil && lockoutUntil.After(now)
}

// Stale reports whether lockoutUntil is set but already elapsed. Read paths
// that observe a stale window clear it (lazy unlock); no janitor runs.
func (p Policy) Stale(lockoutUntil *time.Time, now time.Time) bool {
	return lockoutUntil != nil && !lockoutUntil.After(now)
}

// NextOnFailure computes the state after one more failed attempt given the
// post-increment counter. The window is set only once the counter reaches
// MaxAttempts; below the threshold the until pointer stays nil.
func (p Policy) NextOnFailure(failedAttempts int, now time.Time) (int, *time.Time) {
	if p.MaxAttempts > 0 && failedAttempts >= p.MaxAttempts {
		until := now.Add(p.Duration)
		return failedAttempts, &until
	}
	return failedAttempts, nil
}

// ResetOnSuccess is the transition applied on any successful authentication
// or successful password reset.
func (p Policy) ResetOnSuccess() (int, *time.Time) {
	return 0, nil
}
