package accountauth

import "errors"

var (
	// ErrValidation is an exported constant or variable used by the authentication engine.
	ErrValidation = errors.New("invalid request")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrDuplicateEmail is an exported constant or variable used by the authentication engine.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidToken is an exported constant or variable used by the authentication engine.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrDeliveryFailure is an exported constant or variable used by the authentication engine.
	ErrDeliveryFailure = errors.New("notification delivery failed")
	// ErrSessionInvalid is an exported constant or variable used by the authentication engine.
	ErrSessionInvalid = errors.New("invalid session token")
	// ErrTokenUnavailable is an exported constant or variable used by the authentication engine.
	ErrTokenUnavailable = errors.New("verification token backend unavailable")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrStoreDuplicateEmail is returned by [UserStore.Create] when the
	// normalized email already exists. The engine maps it to
	// [ErrDuplicateEmail].
	ErrStoreDuplicateEmail = errors.New("store duplicate email")
	// ErrStoreUserNotFound is returned by UserStore lookups for unknown
	// ids or addresses. The engine never surfaces it directly.
	ErrStoreUserNotFound = errors.New("store user not found")
)
