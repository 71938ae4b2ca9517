package accountauth

import (
	"context"
	"time"
)

// TokenPurpose scopes a verification token to exactly one sensitive state
// transition. A token minted for one purpose never validates against
// another.
type TokenPurpose uint8

const (
	// PurposeEmailConfirmation is an exported constant or variable used by the authentication engine.
	PurposeEmailConfirmation TokenPurpose = iota
	// PurposePasswordReset is an exported constant or variable used by the authentication engine.
	PurposePasswordReset
)

func (p TokenPurpose) String() string {
	switch p {
	case PurposeEmailConfirmation:
		return "email_confirmation"
	case PurposePasswordReset:
		return "password_reset"
	default:
		return "unknown"
	}
}

// UserRecord is the full account record exchanged with [UserStore]. It
// carries the credential hash, confirmation flag, lockout state, and role
// names.
type UserRecord struct {
	UserID          string
	Email           string
	NormalizedEmail string
	PasswordHash    string
	EmailConfirmed  bool
	FailedAttempts  int
	LockoutEndsAt   time.Time
	Roles           []string
}

// CreateUserInput is the input for [UserStore.Create].
type CreateUserInput struct {
	Email           string
	NormalizedEmail string
	PasswordHash    string
	Roles           []string
}

// UserStore is the credential-persistence interface that callers must
// implement to integrate accountauth with their user database. It owns no
// business rules; the engine drives lockout and confirmation transitions
// through it.
//
// Create must enforce NormalizedEmail uniqueness atomically (a unique
// constraint, not a read-then-insert) and return [ErrStoreDuplicateEmail]
// on conflict. RecordFailedAttempt must increment and return the counter in
// a single atomic store operation. SetLockout with a zero until clears the
// lockout window.
type UserStore interface {
	FindByEmail(ctx context.Context, normalizedEmail string) (UserRecord, error)
	FindByID(ctx context.Context, userID string) (UserRecord, error)
	Create(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	SetEmailConfirmed(ctx context.Context, userID string, confirmed bool) error
	RecordFailedAttempt(ctx context.Context, userID string) (int, error)
	ResetFailedAttempts(ctx context.Context, userID string) error
	SetLockout(ctx context.Context, userID string, until time.Time) error
}

// Notifier delivers out-of-band messages carrying verification token
// values. The engine hands it fully-formed subject and body text and is
// agnostic to transport.
type Notifier interface {
	Send(ctx context.Context, toAddress, subject, body string) error
}

// Clock is the engine's source of current time, injectable for
// deterministic testing of expiry and lockout logic.
type Clock func() time.Time

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email    string
	Password string
	Roles    []string
}

// RegisterResult is returned by [Engine.Register]. The account starts
// unconfirmed; a confirmation token has been dispatched through the
// Notifier.
type RegisterResult struct {
	UserID         string
	Email          string
	EmailConfirmed bool
}

// LoginResult is returned by [Engine.Login]. ExpiresAt is computed once at
// issuance and reported verbatim so callers never re-derive it.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
}

// AuthResult is returned by [Engine.ValidateSession]. It contains the
// authenticated user's ID plus the email and role claims embedded in the
// bearer token.
type AuthResult struct {
	UserID string
	Email  string
	Roles  []string
}
