package accountauth

import (
	"errors"
	"time"
)

// Config defines a public type used by accountauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	EmailConfirmation EmailConfirmationConfig
	PasswordReset     PasswordResetConfig
	Email             EmailConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by accountauth APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	TokenTTL      time.Duration
	SigningMethod string // "hs256" (default), "ed25519" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by accountauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory        uint32 // in KB
	Time          uint32
	Parallelism   uint8
	SaltLength    uint32
	KeyLength     uint32
	MinLength     int
	RehashOnLogin bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by accountauth APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	// MaxFailedAttempts is the consecutive-failure count that triggers a
	// lockout window. The counter resets on successful authentication or
	// password reset, not on window expiry.
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	// RevealLockedOut reports lockout as ErrAccountLocked instead of
	// folding it into ErrInvalidCredentials. Off by default; turning it on
	// trades a small enumeration surface for a clearer product signal.
	RevealLockedOut bool
}

// EmailConfirmationConfig defines a public type used by accountauth APIs.
//
// EmailConfirmationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailConfirmationConfig struct {
	TokenTTL        time.Duration
	MaxAttempts     int
	RequireForLogin bool
}

// PasswordResetConfig defines a public type used by accountauth APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	TokenTTL    time.Duration
	MaxAttempts int
}

// EmailConfig defines a public type used by accountauth APIs.
//
// EmailConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// ConfirmationURL and PasswordResetURL are text/template strings executed
// with [MailParams]; the rendered value is embedded in the outgoing message
// body.
type EmailConfig struct {
	SiteName         string
	SenderName       string
	ConfirmationURL  string
	PasswordResetURL string
}

// AuditConfig defines a public type used by accountauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by accountauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a baseline configuration with conservative security
// defaults. Callers must still supply JWT key material before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TokenTTL:      12 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "accountauth",
		},
		Password: PasswordConfig{
			Memory:        64 * 1024,
			Time:          3,
			Parallelism:   2,
			SaltLength:    16,
			KeyLength:     32,
			MinLength:     10,
			RehashOnLogin: true,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			LockoutDuration:   15 * time.Minute,
		},
		EmailConfirmation: EmailConfirmationConfig{
			TokenTTL:        24 * time.Hour,
			MaxAttempts:     5,
			RequireForLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:    time.Hour,
			MaxAttempts: 5,
		},
		Email: EmailConfig{
			SiteName:         "accountauth",
			SenderName:       "accountauth",
			ConfirmationURL:  "https://localhost/confirm-email?userId={{.UserID}}&token={{.Token}}",
			PasswordResetURL: "https://localhost/reset-password?email={{.Email}}&token={{.Token}}",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.JWT.TokenTTL <= 0 {
		return errors.New("JWT.TokenTTL must be positive")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT.SigningMethod must be hs256 or ed25519")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT.PrivateKey is required")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT.Leeway must be in [0, 2m]")
	}
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout.MaxFailedAttempts must be positive")
	}
	if c.Lockout.LockoutDuration <= 0 {
		return errors.New("Lockout.LockoutDuration must be positive")
	}
	if c.EmailConfirmation.TokenTTL <= 0 {
		return errors.New("EmailConfirmation.TokenTTL must be positive")
	}
	if c.EmailConfirmation.MaxAttempts <= 0 {
		return errors.New("EmailConfirmation.MaxAttempts must be positive")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset.TokenTTL must be positive")
	}
	if c.PasswordReset.MaxAttempts <= 0 {
		return errors.New("PasswordReset.MaxAttempts must be positive")
	}
	if c.Password.MinLength < 10 {
		return errors.New("Password.MinLength must be >= 10")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
