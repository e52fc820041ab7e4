package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAuthenticateSuccess(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass")

	pair, err := f.engine.Authenticate(context.Background(), "alice@example.com", "Str0ng!pass", testMeta)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}
	if pair.AccessExpiresAt.Before(time.Now()) {
		t.Fatal("access expiry in the past")
	}

	if f.store.get("cred-1").LastLoginAt == nil {
		t.Fatal("last login not recorded")
	}
	f.waitAudit(t, AuditLoginSuccess)
}

func TestAuthenticateCaseInsensitiveEmail(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass")

	if _, err := f.engine.Authenticate(context.Background(), "  Alice@Example.COM ", "Str0ng!pass", testMeta); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass")
	deactivated := time.Now().Add(-time.Hour)
	f.seedUser(t, "cred-2", "gone@example.com", "Str0ng!pass", func(c *Credential) {
		c.DeactivatedAt = &deactivated
	})
	f.seedUser(t, "cred-3", "oauth@example.com", "")

	cases := []struct {
		name   string
		email  string
		passwd string
	}{
		{"unknown email", "nobody@example.com", "Str0ng!pass"},
		{"wrong password", "alice@example.com", "nope"},
		{"deactivated account", "gone@example.com", "Str0ng!pass"},
		{"passwordless account", "oauth@example.com", "anything"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Authenticate(context.Background(), tc.email, tc.passwd, testMeta)
			if !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("Authenticate = %v, want ErrInvalidCredential", err)
			}
		})
	}

	// The passwordless account must not accumulate lockout failures.
	if got := f.store.get("cred-3").FailedLogins; got != 0 {
		t.Fatalf("passwordless FailedLogins = %d, want 0", got)
	}
}

func TestAuthenticateLockoutThreshold(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.engine.Authenticate(ctx, "alice@example.com", "wrong", testMeta)
		if !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("attempt %d: %v, want ErrInvalidCredential", i+1, err)
		}
	}

	// The fifth failure crosses the threshold and reports the lock itself.
	_, err := f.engine.Authenticate(ctx, "alice@example.com", "wrong", testMeta)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("fifth attempt = %v, want ErrAccountLocked", err)
	}

	cred := f.store.get("cred-1")
	if cred.FailedLogins != 5 {
		t.Fatalf("FailedLogins = %d, want 5", cred.FailedLogins)
	}
	if cred.LockoutUntil == nil {
		t.Fatal("lockout window not set")
	}

	// Even the correct password is refused while locked.
	if _, err := f.engine.Authenticate(ctx, "alice@example.com", "Str0ng!pass", testMeta); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked login = %v, want ErrAccountLocked", err)
	}

	f.waitAudit(t, AuditAccountLocked)
}

func TestAuthenticateLazyUnlock(t *testing.T) {
	f := newTestEngine(t)
	elapsed := time.Now().Add(-time.Minute)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.FailedLogins = 5
		c.LockoutUntil = &elapsed
	})

	pair, err := f.engine.Authenticate(context.Background(), "alice@example.com", "Str0ng!pass", testMeta)
	if err != nil {
		t.Fatalf("Authenticate after elapsed lockout: %v", err)
	}
	if pair.RefreshToken == "" {
		t.Fatal("no pair issued")
	}

	cred := f.store.get("cred-1")
	if cred.FailedLogins != 0 || cred.LockoutUntil != nil {
		t.Fatalf("lockout state not reset: failed=%d until=%v", cred.FailedLogins, cred.LockoutUntil)
	}
}

func TestAuthenticateStaleLockKeepsCounterOnFailure(t *testing.T) {
	f := newTestEngine(t)
	elapsed := time.Now().Add(-time.Minute)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.FailedLogins = 4
		c.LockoutUntil = &elapsed
	})

	// One more failure after the stale window clears must re-lock: the
	// counter carried over and this failure reaches the threshold.
	_, err := f.engine.Authenticate(context.Background(), "alice@example.com", "wrong", testMeta)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("Authenticate = %v, want ErrAccountLocked", err)
	}
	cred := f.store.get("cred-1")
	if cred.FailedLogins != 5 || cred.LockoutUntil == nil {
		t.Fatalf("unexpected state: failed=%d until=%v", cred.FailedLogins, cred.LockoutUntil)
	}
}

func TestAuthenticateSuccessResetsCounter(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.FailedLogins = 3
	})

	if _, err := f.engine.Authenticate(context.Background(), "alice@example.com", "Str0ng!pass", testMeta); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got := f.store.get("cred-1").FailedLogins; got != 0 {
		t.Fatalf("FailedLogins = %d, want 0", got)
	}
}

func TestAuthenticateRequireVerifiedEmail(t *testing.T) {
	f := newTestEngine(t, func(cfg *Config) {
		cfg.RequireVerifiedEmail = true
	})
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.EmailVerified = false
	})

	_, err := f.engine.Authenticate(context.Background(), "alice@example.com", "Str0ng!pass", testMeta)
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("Authenticate = %v, want ErrAccountUnverified", err)
	}
	// An unverified account must not accumulate failures for a correct
	// password.
	if got := f.store.get("cred-1").FailedLogins; got != 0 {
		t.Fatalf("FailedLogins = %d, want 0", got)
	}
}

func TestAuthenticateStoreUnavailable(t *testing.T) {
	f := newTestEngine(t)
	f.store.failAll = true

	_, err := f.engine.Authenticate(context.Background(), "alice@example.com", "Str0ng!pass", testMeta)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Authenticate = %v, want ErrUnavailable", err)
	}
}
