package accountauth

import (
	"context"
	"errors"
	"log"
	"time"
)

// Login describes the login operation and its observable behavior.
//
// Absent account, wrong password, and unconfirmed email all surface as
// ErrInvalidCredentials. Lockout is folded in as well unless
// Lockout.RevealLockedOut is set.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.hasher == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}

	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "empty_input",
			}
		})
		return nil, ErrInvalidCredentials
	}

	user, err := e.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, ErrStoreUserNotFound) {
			mapped := mapUserStoreError(err)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", mapped, func() map[string]string {
				return map[string]string{
					"email":  email,
					"reason": "store_lookup_failed",
				}
			})
			return nil, mapped
		}
		e.verifyAbsent(password)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "user_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	// Lockout is checked before password verification so a locked account
	// never pays for hash work.
	if e.isLockedOut(user, e.now()) {
		e.metricInc(MetricLoginLockedOut)
		if e.config.Lockout.RevealLockedOut {
			e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, ErrAccountLocked, func() map[string]string {
				return map[string]string{
					"email":  email,
					"reason": "locked_out",
				}
			})
			return nil, ErrAccountLocked
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "locked_out",
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		if lockErr := e.onFailedAttempt(ctx, user); lockErr != nil {
			log.Print("accountauth: failed attempt accounting failed")
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if e.config.EmailConfirmation.RequireForLogin && !user.EmailConfirmed {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "email_unconfirmed",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if e.config.Password.RehashOnLogin {
		if needsRehash, err := e.hasher.NeedsUpgrade(user.PasswordHash); err == nil && needsRehash {
			if upgradedHash, err := e.hasher.Hash(password); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.store.UpdatePasswordHash(ctx, user.UserID, upgradedHash); err != nil {
					log.Print("accountauth: password hash upgrade update failed")
				} else {
					e.metricInc(MetricPasswordRehash)
				}
			} else {
				log.Print("accountauth: password hash upgrade generation failed")
			}
		}
	}
	password = ""

	if err := e.onSuccessfulAttempt(ctx, user.UserID); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "lockout_clear_failed",
			}
		})
		return nil, err
	}

	token, expiresAt, err := e.issueSessionToken(user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "issue_token_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricSessionIssued)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.UserID,
	}, nil
}
