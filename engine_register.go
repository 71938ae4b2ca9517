package accountauth

import (
	"context"
	"errors"
	"strings"
)

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.hasher == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email := strings.TrimSpace(req.Email)
	if !validEmail(email) {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrValidation, func() map[string]string {
			return map[string]string{
				"reason": "invalid_email",
			}
		})
		return nil, ErrValidation
	}
	if len(req.Password) < e.config.Password.MinLength {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_too_short",
			}
		})
		return nil, ErrPasswordPolicy
	}

	passwordHash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "hash_policy",
			}
		})
		return nil, ErrPasswordPolicy
	}

	created, err := e.store.Create(ctx, CreateUserInput{
		Email:           email,
		NormalizedEmail: normalizeEmail(email),
		PasswordHash:    passwordHash,
		Roles:           req.Roles,
	})
	if err != nil {
		if errors.Is(err, ErrStoreDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrDuplicateEmail, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return nil, ErrDuplicateEmail
		}
		mapped := mapUserStoreError(err)
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", mapped, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "store_create_failed",
			}
		})
		return nil, mapped
	}

	req.Password = ""
	result := &RegisterResult{
		UserID:         created.UserID,
		Email:          created.Email,
		EmailConfirmed: created.EmailConfirmed,
	}

	if err := e.sendConfirmationMail(ctx, created); err != nil {
		// The account exists; the caller gets the created summary together
		// with the delivery error so the user can be told to retry via
		// ResendConfirmation.
		e.metricInc(MetricDeliveryFailure)
		e.emitAudit(ctx, auditEventDeliveryFailure, false, created.UserID, ErrDeliveryFailure, func() map[string]string {
			return map[string]string{
				"email":   email,
				"purpose": PurposeEmailConfirmation.String(),
			}
		})
		return result, ErrDeliveryFailure
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.UserID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return result, nil
}

func (e *Engine) sendConfirmationMail(ctx context.Context, user UserRecord) error {
	ttl := e.config.EmailConfirmation.TokenTTL
	tokenValue, err := e.issueVerificationToken(ctx, user.UserID, PurposeEmailConfirmation, ttl)
	if err != nil {
		return err
	}
	e.metricInc(MetricEmailConfirmRequest)
	e.emitAudit(ctx, auditEventEmailConfirmationRequest, true, user.UserID, nil, nil)

	subject, body, err := e.mailer.ConfirmationMail(user, tokenValue, ttl)
	if err != nil {
		return err
	}
	return e.notifier.Send(ctx, user.Email, subject, body)
}
