package accountauth

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// onFailedAttempt advances the per-account failure counter and arms the
// lockout window once the threshold is reached. The counter deliberately
// survives window expiry: it clears only on a successful attempt, so an
// attacker pacing guesses across windows still locks eventually.
func (e *Engine) onFailedAttempt(ctx context.Context, user UserRecord) error {
	count, err := e.store.RecordFailedAttempt(ctx, user.UserID)
	if err != nil {
		return mapUserStoreError(err)
	}

	if count >= e.config.Lockout.MaxFailedAttempts {
		until := e.now().Add(e.config.Lockout.LockoutDuration)
		if err := e.store.SetLockout(ctx, user.UserID, until); err != nil {
			return mapUserStoreError(err)
		}
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventAccountLocked, true, user.UserID, nil, func() map[string]string {
			return map[string]string{
				"failed_attempts": strconv.Itoa(count),
			}
		})
	}

	return nil
}

// onSuccessfulAttempt clears the failure counter and any residual lockout.
func (e *Engine) onSuccessfulAttempt(ctx context.Context, userID string) error {
	if err := e.store.ResetFailedAttempts(ctx, userID); err != nil {
		return mapUserStoreError(err)
	}
	if err := e.store.SetLockout(ctx, userID, time.Time{}); err != nil {
		return mapUserStoreError(err)
	}
	return nil
}

func mapUserStoreError(err error) error {
	switch {
	case errors.Is(err, ErrStoreDuplicateEmail):
		return ErrDuplicateEmail
	case errors.Is(err, ErrStoreUserNotFound):
		return ErrStoreUserNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return ErrStoreUnavailable
	}
}
