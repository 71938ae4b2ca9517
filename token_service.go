package accountauth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/credkit/accountauth/internal"
)

// issueVerificationToken mints a single-use token bound to (user, purpose).
// The returned value is what gets mailed out; the store only ever sees the
// hash of its secret half.
func (e *Engine) issueVerificationToken(ctx context.Context, userID string, purpose TokenPurpose, ttl time.Duration) (string, error) {
	tokenID, tokenValue, secretHash, err := generateVerificationToken()
	if err != nil {
		return "", ErrTokenUnavailable
	}

	record := &verificationTokenRecord{
		UserID:     userID,
		SecretHash: secretHash,
		ExpiresAt:  e.now().Add(ttl).Unix(),
		Attempts:   0,
		Purpose:    purpose,
	}

	if err := e.tokens.Save(ctx, tokenID, record, ttl); err != nil {
		return "", mapVerificationTokenError(err)
	}

	return tokenValue, nil
}

// consumeVerificationToken validates and atomically consumes a presented
// token. All token-shaped failures collapse to ErrInvalidToken before they
// reach a caller; only backend unavailability is reported distinctly.
func (e *Engine) consumeVerificationToken(ctx context.Context, userID string, purpose TokenPurpose, tokenValue string, maxAttempts int) error {
	tokenID, secret, err := internal.DecodeVerificationToken(tokenValue)
	if err != nil {
		return ErrInvalidToken
	}

	record, err := e.tokens.Consume(ctx, tokenID, internal.HashTokenSecret(secret), purpose, maxAttempts)
	if err != nil {
		return mapVerificationTokenError(err)
	}

	if record.UserID != userID {
		return ErrInvalidToken
	}

	return nil
}

func generateVerificationToken() (string, string, [32]byte, error) {
	var emptyHash [32]byte

	tokenID, err := internal.NewTokenID()
	if err != nil {
		return "", "", emptyHash, err
	}

	secret, err := internal.NewTokenSecret()
	if err != nil {
		return "", "", emptyHash, err
	}

	tokenValue, err := internal.EncodeVerificationToken(tokenID.String(), secret)
	if err != nil {
		return "", "", emptyHash, err
	}

	return tokenID.String(), tokenValue, internal.HashTokenSecret(secret), nil
}

func mapVerificationTokenError(err error) error {
	switch {
	case errors.Is(err, redis.Nil),
		errors.Is(err, errTokenNotFound),
		errors.Is(err, errTokenSecretMismatch),
		errors.Is(err, errTokenPurposeMismatch),
		errors.Is(err, errTokenAttemptsExceeded):
		return ErrInvalidToken
	case errors.Is(err, errTokenRedisUnavailable):
		return ErrTokenUnavailable
	default:
		return ErrTokenUnavailable
	}
}

func sleepEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	delay := time.Duration(minMs+n.Int64()) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
