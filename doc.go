// Package accountauth provides an account-authentication engine with salted
// versioned password hashing, account lockout, Redis-backed single-use
// verification tokens, and JWT bearer session tokens.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// accountauth is the public surface. It exposes [Engine], [Builder],
// [Config], the collaborator interfaces ([UserStore], [Notifier]), and value
// types (RegisterResult, LoginResult, SecurityReport, etc.). Token record
// encoding, random material generation, and metric storage live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, token record encodings, or password hash
//     internals in its public API.
//   - Return or log plaintext passwords or raw token secrets.
//   - Import any sub-package that re-imports accountauth (no import cycles).
//
// # Enumeration safety
//
// Login, ForgotPassword, ResendConfirmation, and ResetPassword resolve the
// precise internal failure and then deliberately collapse it before it
// reaches the caller: unknown address, wrong password, and unconfirmed email
// are indistinguishable from the outside.
package accountauth
