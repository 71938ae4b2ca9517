package accountauth

import "time"

type SecurityReport struct {
	SigningAlgorithm        string
	SessionTTL              time.Duration
	Argon2                  PasswordConfigReport
	LockoutActive           bool
	MaxFailedAttempts       int
	LockoutDuration         time.Duration
	LockedOutRevealed       bool
	ConfirmedEmailRequired  bool
	PasswordRehashOnLogin   bool
	EnumerationSafeRecovery bool
	AuditActive             bool
	MetricsActive           bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		SessionTTL:       e.config.JWT.TokenTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
			MinLength:   e.config.Password.MinLength,
		},
		LockoutActive:           e.config.Lockout.MaxFailedAttempts > 0,
		MaxFailedAttempts:       e.config.Lockout.MaxFailedAttempts,
		LockoutDuration:         e.config.Lockout.LockoutDuration,
		LockedOutRevealed:       e.config.Lockout.RevealLockedOut,
		ConfirmedEmailRequired:  e.config.EmailConfirmation.RequireForLogin,
		PasswordRehashOnLogin:   e.config.Password.RehashOnLogin,
		EnumerationSafeRecovery: true,
		AuditActive:             e.audit != nil,
		MetricsActive:           e.metrics.Enabled(),
	}
}
