package accountauth

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testConfig keeps argon2 at its floor so the suite stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	cfg.Email.ConfirmationURL = "https://example.test/confirm?token={{.Token}}"
	cfg.Email.PasswordResetURL = "https://example.test/reset?token={{.Token}}"
	return cfg
}

func newTestEngine(
	t *testing.T,
	rdb *redis.Client,
	store UserStore,
	n Notifier,
	clock Clock,
	mutate func(*Config),
) *Engine {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithNotifier(n)
	if clock != nil {
		b = b.WithClock(clock)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockUserStore struct {
	mu      sync.Mutex
	byID    map[string]UserRecord
	byEmail map[string]string
	seq     int

	createErr     error
	updateHashErr error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byID:    make(map[string]UserRecord),
		byEmail: make(map[string]string),
	}
}

func (s *mockUserStore) Create(_ context.Context, input CreateUserInput) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return UserRecord{}, s.createErr
	}
	if _, exists := s.byEmail[input.NormalizedEmail]; exists {
		return UserRecord{}, ErrStoreDuplicateEmail
	}

	s.seq++
	u := UserRecord{
		UserID:          fmt.Sprintf("u%d", s.seq),
		Email:           input.Email,
		NormalizedEmail: input.NormalizedEmail,
		PasswordHash:    input.PasswordHash,
		Roles:           append([]string(nil), input.Roles...),
	}
	s.byID[u.UserID] = u
	s.byEmail[u.NormalizedEmail] = u.UserID
	return u, nil
}

func (s *mockUserStore) FindByEmail(_ context.Context, normalizedEmail string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalizedEmail]
	if !ok {
		return UserRecord{}, ErrStoreUserNotFound
	}
	return s.byID[id], nil
}

func (s *mockUserStore) FindByID(_ context.Context, userID string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return UserRecord{}, ErrStoreUserNotFound
	}
	return u, nil
}

func (s *mockUserStore) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateHashErr != nil {
		return s.updateHashErr
	}
	return s.updateLocked(userID, func(u *UserRecord) { u.PasswordHash = newHash })
}

func (s *mockUserStore) SetEmailConfirmed(_ context.Context, userID string, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(userID, func(u *UserRecord) { u.EmailConfirmed = confirmed })
}

func (s *mockUserStore) RecordFailedAttempt(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return 0, ErrStoreUserNotFound
	}
	u.FailedAttempts++
	s.byID[userID] = u
	return u.FailedAttempts, nil
}

func (s *mockUserStore) ResetFailedAttempts(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(userID, func(u *UserRecord) { u.FailedAttempts = 0 })
}

func (s *mockUserStore) SetLockout(_ context.Context, userID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(userID, func(u *UserRecord) { u.LockoutEndsAt = until })
}

func (s *mockUserStore) updateLocked(userID string, fn func(*UserRecord)) error {
	u, ok := s.byID[userID]
	if !ok {
		return ErrStoreUserNotFound
	}
	fn(&u)
	s.byID[userID] = u
	return nil
}

func (s *mockUserStore) get(t *testing.T, userID string) UserRecord {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		t.Fatalf("user %q not in store", userID)
	}
	return u
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type captureNotifier struct {
	mu    sync.Mutex
	mails []sentMail
}

func (n *captureNotifier) Send(_ context.Context, toAddress, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mails = append(n.mails, sentMail{To: toAddress, Subject: subject, Body: body})
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.mails)
}

func (n *captureNotifier) last(t *testing.T) sentMail {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.mails) == 0 {
		t.Fatal("no mail captured")
	}
	return n.mails[len(n.mails)-1]
}

var tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

func tokenFromMail(t *testing.T, mail sentMail) string {
	t.Helper()

	m := tokenPattern.FindStringSubmatch(mail.Body)
	if m == nil {
		t.Fatalf("no token link in mail body:\n%s", mail.Body)
	}
	return m[1]
}

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, string, string, string) error {
	return fmt.Errorf("smtp connection refused")
}
