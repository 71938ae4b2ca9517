package accountauth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	verificationKeyPrefix       = "avt"
	verificationRecordVersionV1 = 1
)

var (
	errTokenNotFound         = errors.New("verification token not found")
	errTokenSecretMismatch   = errors.New("verification token secret mismatch")
	errTokenPurposeMismatch  = errors.New("verification token purpose mismatch")
	errTokenAttemptsExceeded = errors.New("verification token attempts exceeded")
	errTokenRedisUnavailable = errors.New("verification token redis unavailable")
)

type verificationTokenRecord struct {
	UserID     string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
	Purpose    TokenPurpose
}

type verificationTokenStore struct {
	redis  *redis.Client
	prefix string
	clock  Clock
}

func newVerificationTokenStore(redisClient *redis.Client, clock Clock) *verificationTokenStore {
	if clock == nil {
		clock = time.Now
	}
	return &verificationTokenStore{
		redis:  redisClient,
		prefix: verificationKeyPrefix,
		clock:  clock,
	}
}

func (s *verificationTokenStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *verificationTokenStore) Save(
	ctx context.Context,
	tokenID string,
	record *verificationTokenRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeVerificationTokenRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(tokenID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errTokenRedisUnavailable, err)
	}

	return nil
}

// Consume describes the consume operation and its observable behavior.
//
// Consumption is check-and-delete inside one optimistic transaction: two
// concurrent callers presenting the same valid token get exactly one success,
// the other observes not-found.
//
// Consume may return an error when input validation, dependency calls, or security checks fail.
// Consume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *verificationTokenStore) Consume(
	ctx context.Context,
	tokenID string,
	providedHash [32]byte,
	expectedPurpose TokenPurpose,
	maxAttempts int,
) (*verificationTokenRecord, error) {
	const maxRetries = 4
	key := s.key(tokenID)

	for i := 0; i < maxRetries; i++ {
		var matched *verificationTokenRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeVerificationTokenRecord(data)
			if err != nil {
				return err
			}

			now := s.clock()
			if now.Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errTokenNotFound
			}

			if record.Purpose != expectedPurpose {
				// The record stays intact: presenting a token to the wrong
				// flow must not burn it for the right one.
				return errTokenPurposeMismatch
			}

			if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errTokenAttemptsExceeded
				}

				ttl := time.Unix(record.ExpiresAt, 0).Sub(now)
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errTokenNotFound
				}

				updated, err := encodeVerificationTokenRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errTokenSecretMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil),
				errors.Is(err, errTokenNotFound),
				errors.Is(err, errTokenSecretMismatch),
				errors.Is(err, errTokenPurposeMismatch),
				errors.Is(err, errTokenAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", errTokenRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, errTokenNotFound
}

func encodeVerificationTokenRecord(record *verificationTokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(verificationRecordVersionV1)
	buf.WriteByte(byte(record.Purpose))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("verification token record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeVerificationTokenRecord(data []byte) (*verificationTokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != verificationRecordVersionV1 {
		return nil, errors.New("invalid verification token record version")
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &verificationTokenRecord{
		Purpose: TokenPurpose(purpose),
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
