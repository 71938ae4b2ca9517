package accountauth

import (
	"context"
	"errors"
	"log"
)

// ConfirmEmail describes the confirmemail operation and its observable behavior.
//
// ConfirmEmail may return an error when input validation, dependency calls, or security checks fail.
// ConfirmEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmEmail(ctx context.Context, userID, tokenValue string) error {
	if e == nil || e.store == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if userID == "" || tokenValue == "" {
		e.metricInc(MetricEmailConfirmFailure)
		e.emitAudit(ctx, auditEventEmailConfirmationConfirm, false, userID, ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "empty_input",
			}
		})
		return ErrInvalidToken
	}

	user, err := e.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if delayErr := sleepEnumerationDelay(ctx); delayErr != nil {
			return delayErr
		}
		e.metricInc(MetricEmailConfirmFailure)
		e.emitAudit(ctx, auditEventEmailConfirmationConfirm, false, userID, ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "user_not_found",
			}
		})
		return ErrInvalidToken
	}

	if err := e.consumeVerificationToken(ctx, user.UserID, PurposeEmailConfirmation, tokenValue, e.config.EmailConfirmation.MaxAttempts); err != nil {
		e.metricInc(MetricEmailConfirmFailure)
		e.emitAudit(ctx, auditEventEmailConfirmationConfirm, false, user.UserID, err, nil)
		return err
	}

	if user.EmailConfirmed {
		e.metricInc(MetricEmailConfirmSuccess)
		e.emitAudit(ctx, auditEventEmailConfirmationConfirm, true, user.UserID, nil, func() map[string]string {
			return map[string]string{
				"noop": "already_confirmed",
			}
		})
		return nil
	}

	if err := e.store.SetEmailConfirmed(ctx, user.UserID, true); err != nil {
		mapped := mapUserStoreError(err)
		e.metricInc(MetricEmailConfirmFailure)
		e.emitAudit(ctx, auditEventEmailConfirmationConfirm, false, user.UserID, mapped, func() map[string]string {
			return map[string]string{
				"reason": "flag_update_failed",
			}
		})
		return mapped
	}

	e.metricInc(MetricEmailConfirmSuccess)
	e.emitAudit(ctx, auditEventEmailConfirmationConfirm, true, user.UserID, nil, nil)
	return nil
}

// ResendConfirmation describes the resendconfirmation operation and its observable behavior.
//
// Like ForgotPassword, the response is identical whether or not an account
// exists for email, and a no-op for accounts that are already confirmed.
//
// ResendConfirmation may return an error when input validation, dependency calls, or security checks fail.
// ResendConfirmation does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ResendConfirmation(ctx context.Context, email string) error {
	if e == nil || e.store == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if !validEmail(email) {
		return ErrValidation
	}

	user, err := e.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil || user.EmailConfirmed {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if delayErr := sleepEnumerationDelay(ctx); delayErr != nil {
			return delayErr
		}
		if _, _, _, genErr := generateVerificationToken(); genErr != nil {
			log.Print("accountauth: fake confirmation token generation failed")
		}
		e.metricInc(MetricEmailConfirmRequest)
		e.emitAudit(ctx, auditEventEmailConfirmationRequest, true, "", nil, func() map[string]string {
			return map[string]string{
				"email":            email,
				"enumeration_safe": "true",
			}
		})
		return nil
	}

	if err := e.sendConfirmationMail(ctx, user); err != nil {
		log.Print("accountauth: confirmation mail delivery failed")
		e.metricInc(MetricDeliveryFailure)
		e.emitAudit(ctx, auditEventDeliveryFailure, false, user.UserID, ErrDeliveryFailure, func() map[string]string {
			return map[string]string{
				"email":   email,
				"purpose": PurposeEmailConfirmation.String(),
			}
		})
		return nil
	}

	return nil
}
