// Package postgres provides a PostgreSQL-backed accountauth.UserStore,
// wiring together the user table and database migrations (via goose).
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	accountauth "github.com/credkit/accountauth"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolationCode = "23505"

// Store implements accountauth.UserStore on top of database/sql with the pgx
// stdlib driver.
type Store struct {
	db *sql.DB
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn with the pgx stdlib driver and returns a migrated Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := New(db)
	if err := s.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return s, nil
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the store's database connection.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

const userColumns = `id, email, normalized_email, password_hash, email_confirmed, failed_attempts, lockout_ends_at, roles`

// Create describes the create operation and its observable behavior.
//
// The uniqueness of normalized_email is enforced by the database constraint,
// not by a prior existence check, so two concurrent registrations with the
// same email cannot both succeed.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Create(ctx context.Context, input accountauth.CreateUserInput) (accountauth.UserRecord, error) {
	roles, err := json.Marshal(input.Roles)
	if err != nil {
		return accountauth.UserRecord{}, fmt.Errorf("encode roles: %w", err)
	}

	query := `INSERT INTO users (id, email, normalized_email, password_hash, roles)
	 VALUES ($1, $2, $3, $4, $5)
	 RETURNING ` + userColumns

	row := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), input.Email, input.NormalizedEmail, input.PasswordHash, roles)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return accountauth.UserRecord{}, accountauth.ErrStoreDuplicateEmail
		}
		return accountauth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// FindByEmail describes the findbyemail operation and its observable behavior.
//
// FindByEmail may return an error when input validation, dependency calls, or security checks fail.
// FindByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByEmail(ctx context.Context, normalizedEmail string) (accountauth.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE normalized_email = $1`
	return s.findOne(ctx, query, normalizedEmail)
}

// FindByID describes the findbyid operation and its observable behavior.
//
// FindByID may return an error when input validation, dependency calls, or security checks fail.
// FindByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByID(ctx context.Context, userID string) (accountauth.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.findOne(ctx, query, userID)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (accountauth.UserRecord, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accountauth.UserRecord{}, accountauth.ErrStoreUserNotFound
		}
		return accountauth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
//
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
// UpdatePasswordHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	return s.execOne(ctx, query, userID, newHash)
}

// SetEmailConfirmed describes the setemailconfirmed operation and its observable behavior.
//
// SetEmailConfirmed may return an error when input validation, dependency calls, or security checks fail.
// SetEmailConfirmed does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SetEmailConfirmed(ctx context.Context, userID string, confirmed bool) error {
	query := `UPDATE users SET email_confirmed = $2 WHERE id = $1`
	return s.execOne(ctx, query, userID, confirmed)
}

// RecordFailedAttempt describes the recordfailedattempt operation and its observable behavior.
//
// The increment happens inside a single UPDATE so concurrent failures on the
// same account never lose counts.
//
// RecordFailedAttempt may return an error when input validation, dependency calls, or security checks fail.
// RecordFailedAttempt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RecordFailedAttempt(ctx context.Context, userID string) (int, error) {
	query := `UPDATE users SET failed_attempts = failed_attempts + 1
	 WHERE id = $1
	 RETURNING failed_attempts`

	var count int
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accountauth.ErrStoreUserNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

// ResetFailedAttempts describes the resetfailedattempts operation and its observable behavior.
//
// ResetFailedAttempts may return an error when input validation, dependency calls, or security checks fail.
// ResetFailedAttempts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ResetFailedAttempts(ctx context.Context, userID string) error {
	query := `UPDATE users SET failed_attempts = 0 WHERE id = $1`
	return s.execOne(ctx, query, userID)
}

// SetLockout describes the setlockout operation and its observable behavior.
//
// A zero until clears the lockout.
//
// SetLockout may return an error when input validation, dependency calls, or security checks fail.
// SetLockout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SetLockout(ctx context.Context, userID string, until time.Time) error {
	query := `UPDATE users SET lockout_ends_at = $2 WHERE id = $1`

	var arg sql.NullTime
	if !until.IsZero() {
		arg = sql.NullTime{Time: until.UTC(), Valid: true}
	}
	return s.execOne(ctx, query, userID, arg)
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return accountauth.ErrStoreUserNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (accountauth.UserRecord, error) {
	var (
		user      accountauth.UserRecord
		lockout   sql.NullTime
		rolesJSON []byte
	)

	err := row.Scan(
		&user.UserID,
		&user.Email,
		&user.NormalizedEmail,
		&user.PasswordHash,
		&user.EmailConfirmed,
		&user.FailedAttempts,
		&lockout,
		&rolesJSON,
	)
	if err != nil {
		return accountauth.UserRecord{}, err
	}

	if lockout.Valid {
		user.LockoutEndsAt = lockout.Time
	}
	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &user.Roles); err != nil {
			return accountauth.UserRecord{}, fmt.Errorf("decode roles: %w", err)
		}
	}

	return user, nil
}
