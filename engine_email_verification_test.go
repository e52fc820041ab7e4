package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmailVerificationEndToEnd(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.EmailVerified = false
	})
	ctx := context.Background()

	token, err := f.engine.RequestEmailVerification(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestEmailVerification: %v", err)
	}
	if token == "" {
		t.Fatal("no token issued")
	}

	if err := f.engine.ConfirmEmailVerification(ctx, token); err != nil {
		t.Fatalf("ConfirmEmailVerification: %v", err)
	}
	if !f.store.get("cred-1").EmailVerified {
		t.Fatal("email not marked verified")
	}

	// The token burned with use.
	if err := f.engine.ConfirmEmailVerification(ctx, token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("second confirm = %v, want ErrInvalidCredential", err)
	}
	f.waitAudit(t, AuditVerifyCompleted)
}

func TestRequestEmailVerificationSilentCases(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "verified@example.com", "Str0ng!pass")

	cases := []struct {
		name  string
		email string
	}{
		{"unknown email", "nobody@example.com"},
		{"already verified", "verified@example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := f.engine.RequestEmailVerification(context.Background(), tc.email)
			if err != nil {
				t.Fatalf("RequestEmailVerification: %v", err)
			}
			if token != "" {
				t.Fatal("token issued unexpectedly")
			}
		})
	}
}

func TestRequestEmailVerificationCooldown(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.EmailVerified = false
	})
	ctx := context.Background()

	if _, err := f.engine.RequestEmailVerification(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification: %v", err)
	}
	if _, err := f.engine.RequestEmailVerification(ctx, "alice@example.com"); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("repeat request = %v, want ErrTooSoon", err)
	}
}

func TestConfirmEmailVerificationExpired(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.EmailVerified = false
	})
	ctx := context.Background()

	token, err := f.engine.RequestEmailVerification(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestEmailVerification: %v", err)
	}

	cred := f.store.get("cred-1")
	cred.Verify.ExpiresAt = time.Now().Add(-time.Minute)
	f.store.put(cred)

	if err := f.engine.ConfirmEmailVerification(ctx, token); !errors.Is(err, ErrExpired) {
		t.Fatalf("ConfirmEmailVerification = %v, want ErrExpired", err)
	}
	if f.store.get("cred-1").EmailVerified {
		t.Fatal("expired token must not verify")
	}
}

func TestVerificationAndResetSlotsAreIndependent(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass", func(c *Credential) {
		c.EmailVerified = false
	})
	ctx := context.Background()

	resetToken, err := f.engine.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	verifyToken, err := f.engine.RequestEmailVerification(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestEmailVerification: %v", err)
	}

	// A reset token does not verify email, and vice versa.
	if err := f.engine.ConfirmEmailVerification(ctx, resetToken); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("cross-purpose confirm = %v, want ErrInvalidCredential", err)
	}
	if err := f.engine.ResetPassword(ctx, verifyToken, "N3w-Secret!"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("cross-purpose reset = %v, want ErrInvalidCredential", err)
	}

	// Both remain usable for their own purpose.
	if err := f.engine.ConfirmEmailVerification(ctx, verifyToken); err != nil {
		t.Fatalf("ConfirmEmailVerification: %v", err)
	}
	if err := f.engine.ResetPassword(ctx, resetToken, "N3w-Secret!"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
}
