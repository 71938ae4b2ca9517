package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Writer dumps rendered messages to an io.Writer. Meant for development
// setups and tests where no SMTP relay exists.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriter describes the newwriter operation and its observable behavior.
//
// NewWriter may return an error when input validation, dependency calls, or security checks fail.
// NewWriter does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (n *Writer) Send(ctx context.Context, toAddress, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	_, err := fmt.Fprintf(n.w, "To: %s\nSubject: %s\n\n%s\n", toAddress, subject, body)
	return err
}
