package authcore

import (
	"errors"
	"time"
)

// Config is the single configuration object injected at construction.
// Engines never read process-wide settings at call time.
type Config struct {
	Token             TokenConfig
	Session           SessionConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	PasswordReset     SingleUseConfig
	EmailVerification SingleUseConfig
	Audit             AuditConfig
	Metrics           MetricsConfig

	// RequireVerifiedEmail refuses login for accounts whose email address
	// has not been verified.
	RequireVerifiedEmail bool
}

// TokenConfig controls the stateless signed access token.
type TokenConfig struct {
	Secret    []byte // symmetric HS256 signing secret, required
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// SessionConfig controls refresh-credential sessions.
type SessionConfig struct {
	RefreshTTL time.Duration
	// Retention is how long expired or revoked sessions stay visible to the
	// store before SweepSessions may physically delete them.
	Retention   time.Duration
	RedisPrefix string
}

// PasswordConfig carries the argon2id cost parameters and the strength
// policy for new passwords.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32 // cost factor
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// LockoutConfig controls the failed-login lockout state machine.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// SingleUseConfig controls one single-use token purpose.
type SingleUseConfig struct {
	TTL time.Duration
	// ResendCooldownFraction is the fraction of TTL during which a live
	// token blocks reissue. At 0.85 with a 1h TTL, a repeat request is
	// refused with ErrTooSoon until under 9 minutes of lifetime remain.
	ResendCooldownFraction float64
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counter metrics.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms additionally tracks the authenticate latency
	// histogram, which is dominated by the password hash.
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL: time.Hour,
			Issuer:    "authcore",
			Leeway:    30 * time.Second,
		},
		Session: SessionConfig{
			RefreshTTL:  7 * 24 * time.Hour,
			Retention:   24 * time.Hour,
			RedisPrefix: "cs",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    30 * time.Minute,
		},
		PasswordReset: SingleUseConfig{
			TTL:                    time.Hour,
			ResendCooldownFraction: 0.85,
		},
		EmailVerification: SingleUseConfig{
			TTL:                    24 * time.Hour,
			ResendCooldownFraction: 0.85,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the production defaults. Callers override fields
// before passing the result to the builder.
func DefaultConfig() Config {
	return defaultConfig()
}

func validateConfig(cfg Config) error {
	if len(cfg.Token.Secret) == 0 {
		return errors.New("token signing secret is required")
	}
	if cfg.Token.AccessTTL <= 0 {
		return errors.New("access token TTL must be positive")
	}
	if cfg.Session.RefreshTTL <= cfg.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Session.Retention < 0 {
		return errors.New("session retention must not be negative")
	}
	if cfg.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be >= 1")
	}
	if cfg.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	for _, su := range []struct {
		name string
		cfg  SingleUseConfig
	}{
		{"password reset", cfg.PasswordReset},
		{"email verification", cfg.EmailVerification},
	} {
		if su.cfg.TTL <= 0 {
			return errors.New(su.name + " token TTL must be positive")
		}
		if su.cfg.ResendCooldownFraction < 0 || su.cfg.ResendCooldownFraction >= 1 {
			return errors.New(su.name + " resend cooldown fraction must be in [0, 1)")
		}
	}
	return nil
}
