package accountauth

import (
	"context"
	"errors"
	"log"
)

// ForgotPassword describes the forgotpassword operation and its observable behavior.
//
// The outcome is deliberately identical whether or not an account exists for
// email: the caller always gets nil. Only if the account exists and its email
// is confirmed does a reset token actually go out. The miss path burns the
// same token-generation work plus a small random delay so the two branches
// are not separable by timing either.
//
// ForgotPassword may return an error when input validation, dependency calls, or security checks fail.
// ForgotPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil || e.store == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if !validEmail(email) {
		return ErrValidation
	}

	user, err := e.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil || !user.EmailConfirmed {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if delayErr := sleepEnumerationDelay(ctx); delayErr != nil {
			return delayErr
		}
		if _, _, _, genErr := generateVerificationToken(); genErr != nil {
			log.Print("accountauth: fake reset token generation failed")
		}
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", nil, func() map[string]string {
			return map[string]string{
				"email":            email,
				"enumeration_safe": "true",
			}
		})
		return nil
	}

	ttl := e.config.PasswordReset.TokenTTL
	tokenValue, err := e.issueVerificationToken(ctx, user.UserID, PurposePasswordReset, ttl)
	if err != nil {
		// The generic-success contract holds even when the token backend or
		// the notifier is down; the failure is visible in audit and metrics.
		log.Print("accountauth: password reset token issue failed")
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.UserID, err, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return nil
	}

	subject, body, err := e.mailer.PasswordResetMail(user, tokenValue, ttl)
	if err == nil {
		err = e.notifier.Send(ctx, user.Email, subject, body)
	}
	if err != nil {
		log.Print("accountauth: password reset mail delivery failed")
		e.metricInc(MetricDeliveryFailure)
		e.emitAudit(ctx, auditEventDeliveryFailure, false, user.UserID, ErrDeliveryFailure, func() map[string]string {
			return map[string]string{
				"email":   email,
				"purpose": PurposePasswordReset.String(),
			}
		})
		return nil
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return nil
}

// ResetPassword describes the resetpassword operation and its observable behavior.
//
// Every token-shaped failure (unknown account, wrong token, expired,
// replayed, wrong purpose) comes back as the same ErrInvalidToken.
//
// ResetPassword may return an error when input validation, dependency calls, or security checks fail.
// ResetPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ResetPassword(ctx context.Context, email, tokenValue, newPassword string) error {
	if e == nil || e.hasher == nil || e.store == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if len(newPassword) < e.config.Password.MinLength {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_too_short",
			}
		})
		return ErrPasswordPolicy
	}

	user, err := e.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if delayErr := sleepEnumerationDelay(ctx); delayErr != nil {
			return delayErr
		}
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "user_not_found",
			}
		})
		return ErrInvalidToken
	}

	if err := e.consumeVerificationToken(ctx, user.UserID, PurposePasswordReset, tokenValue, e.config.PasswordReset.MaxAttempts); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.UserID, err, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.UserID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "hash_policy",
			}
		})
		return ErrPasswordPolicy
	}

	if err := e.store.UpdatePasswordHash(ctx, user.UserID, newHash); err != nil {
		mapped := mapUserStoreError(err)
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.UserID, mapped, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "update_hash_failed",
			}
		})
		return mapped
	}

	// A successful reset also clears residual lockout state, the same as a
	// successful login would.
	if err := e.onSuccessfulAttempt(ctx, user.UserID); err != nil {
		log.Print("accountauth: lockout clear failed after password reset")
	}

	newPassword = ""
	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return nil
}
