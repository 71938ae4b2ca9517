// Package notifier provides out-of-band delivery backends for the messages
// the authentication engine sends: email confirmation links and password
// reset links.
//
// [SMTP] delivers over a real SMTP relay; [Writer] dumps rendered messages to
// an io.Writer and is intended for development and tests.
//
// # What this package must NOT do
//
//   - Render message bodies (the engine owns templates).
//   - Retry deliveries — the engine treats delivery as fire-and-forget.
package notifier
