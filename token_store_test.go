package accountauth

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func seedToken(
	t *testing.T,
	store *verificationTokenStore,
	userID string,
	purpose TokenPurpose,
	ttl time.Duration,
) (string, [32]byte) {
	t.Helper()

	tokenID, _, secretHash, err := generateVerificationToken()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	record := &verificationTokenRecord{
		UserID:     userID,
		SecretHash: secretHash,
		ExpiresAt:  store.clock().Add(ttl).Unix(),
		Purpose:    purpose,
	}
	if err := store.Save(context.Background(), tokenID, record, ttl); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	return tokenID, secretHash
}

func TestTokenConsumeDeletesRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newVerificationTokenStore(rdb, nil)
	tokenID, hash := seedToken(t, store, "u1", PurposePasswordReset, time.Hour)

	record, err := store.Consume(context.Background(), tokenID, hash, PurposePasswordReset, 5)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if record.UserID != "u1" {
		t.Fatalf("unexpected user id %q", record.UserID)
	}

	if _, err := store.Consume(context.Background(), tokenID, hash, PurposePasswordReset, 5); !errors.Is(err, redis.Nil) {
		t.Fatalf("second consume: want redis.Nil, got %v", err)
	}
}

func TestTokenConsumeConcurrentExactlyOnce(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newVerificationTokenStore(rdb, nil)
	tokenID, hash := seedToken(t, store, "u1", PurposeEmailConfirmation, time.Hour)

	const callers = 16
	results := make([]error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			_, results[i] = store.Consume(context.Background(), tokenID, hash, PurposeEmailConfirmation, 5)
		}(i)
	}
	start.Done()
	done.Wait()

	var successes int
	for i, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, redis.Nil), errors.Is(err, errTokenNotFound):
		default:
			t.Fatalf("caller %d: unexpected error %v", i, err)
		}
	}
	if successes != 1 {
		t.Fatalf("want exactly 1 successful consume, got %d", successes)
	}
}

func TestTokenConsumeExpired(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	clock := newTestClock(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	store := newVerificationTokenStore(rdb, clock.Now)
	tokenID, hash := seedToken(t, store, "u1", PurposePasswordReset, time.Hour)

	clock.Advance(2 * time.Hour)

	if _, err := store.Consume(context.Background(), tokenID, hash, PurposePasswordReset, 5); !errors.Is(err, errTokenNotFound) {
		t.Fatalf("want errTokenNotFound, got %v", err)
	}

	// The expired record is gone, not just rejected.
	if rdb.Exists(context.Background(), store.key(tokenID)).Val() != 0 {
		t.Fatal("expired record left in redis")
	}
}

func TestTokenConsumePurposeMismatchKeepsRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newVerificationTokenStore(rdb, nil)
	tokenID, hash := seedToken(t, store, "u1", PurposeEmailConfirmation, time.Hour)

	if _, err := store.Consume(context.Background(), tokenID, hash, PurposePasswordReset, 5); !errors.Is(err, errTokenPurposeMismatch) {
		t.Fatalf("want errTokenPurposeMismatch, got %v", err)
	}

	// Still consumable by the purpose it was minted for.
	if _, err := store.Consume(context.Background(), tokenID, hash, PurposeEmailConfirmation, 5); err != nil {
		t.Fatalf("record burnt by wrong-purpose presentation: %v", err)
	}
}

func TestTokenConsumeWrongSecretCountsAttempts(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newVerificationTokenStore(rdb, nil)
	tokenID, hash := seedToken(t, store, "u1", PurposePasswordReset, time.Hour)

	wrong := sha256.Sum256([]byte("not the secret"))

	if _, err := store.Consume(context.Background(), tokenID, wrong, PurposePasswordReset, 2); !errors.Is(err, errTokenSecretMismatch) {
		t.Fatalf("first mismatch: want errTokenSecretMismatch, got %v", err)
	}

	// Second mismatch exhausts maxAttempts and destroys the record.
	if _, err := store.Consume(context.Background(), tokenID, wrong, PurposePasswordReset, 2); !errors.Is(err, errTokenAttemptsExceeded) {
		t.Fatalf("second mismatch: want errTokenAttemptsExceeded, got %v", err)
	}

	if _, err := store.Consume(context.Background(), tokenID, hash, PurposePasswordReset, 2); !errors.Is(err, redis.Nil) {
		t.Fatalf("record should be gone after attempt exhaustion, got %v", err)
	}
}

func TestVerificationTokenRecordRoundTrip(t *testing.T) {
	record := &verificationTokenRecord{
		UserID:    "user-with-a-long-id",
		ExpiresAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Attempts:  3,
		Purpose:   PurposePasswordReset,
	}
	copy(record.SecretHash[:], []byte("0123456789abcdef0123456789abcdef"))

	encoded, err := encodeVerificationTokenRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := decodeVerificationTokenRecord(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.UserID != record.UserID ||
		decoded.ExpiresAt != record.ExpiresAt ||
		decoded.Attempts != record.Attempts ||
		decoded.Purpose != record.Purpose ||
		decoded.SecretHash != record.SecretHash {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, record)
	}
}

func TestVerificationTokenRecordRejectsUnknownVersion(t *testing.T) {
	record := &verificationTokenRecord{UserID: "u1", ExpiresAt: 1}
	encoded, err := encodeVerificationTokenRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	encoded[0] = 99
	if _, err := decodeVerificationTokenRecord(encoded); err == nil {
		t.Fatal("expected version error")
	}
}
