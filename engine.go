package accountauth

import (
	"context"
	"strings"
	"time"

	"github.com/credkit/accountauth/jwt"
	"github.com/credkit/accountauth/password"
)

// Engine defines a public type used by accountauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	store      UserStore
	tokens     *verificationTokenStore
	notifier   Notifier
	mailer     *mailRenderer
	audit      *auditDispatcher
	metrics    *Metrics
	hasher     *password.Argon2
	jwtManager *jwt.Manager
	clock      Clock

	// decoyHash is verified against when the target account does not exist,
	// so the miss path costs the same hash work as a real mismatch.
	decoyHash string
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock().UTC()
}

// normalizeEmail produces the canonical form used for uniqueness and lookups.
// The preserved-case form is what the account displays and receives mail at.
func normalizeEmail(email string) string {
	return strings.ToUpper(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}

func (e *Engine) isLockedOut(user UserRecord, now time.Time) bool {
	return !user.LockoutEndsAt.IsZero() && user.LockoutEndsAt.After(now)
}

// ValidateSession describes the validatesession operation and its observable behavior.
//
// ValidateSession may return an error when input validation, dependency calls, or security checks fail.
// ValidateSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateSession(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.Parse(tokenStr)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	return &AuthResult{
		UserID: claims.Subject,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}, nil
}

func (e *Engine) issueSessionToken(user UserRecord) (string, time.Time, error) {
	return e.jwtManager.Issue(user.UserID, user.Email, user.Roles)
}

// verifyAbsent burns hash work on the miss path so a lookup miss and a
// password mismatch are indistinguishable by response time.
func (e *Engine) verifyAbsent(candidate string) {
	if e.decoyHash == "" {
		return
	}
	_, _ = e.hasher.Verify(candidate, e.decoyHash)
}
