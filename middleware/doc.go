// Package middleware exposes an HTTP middleware adapter for bearer session-token
// enforcement built on top of accountauth.Engine validation.
//
// [Guard] reads the Authorization header, calls Engine.ValidateSession, and
// injects the validated claims into the request context where
// [AuthResultFromContext] can retrieve them.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.ValidateSession.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access the user store or Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.ValidateSession.
package middleware
