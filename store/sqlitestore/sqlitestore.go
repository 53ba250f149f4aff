// Package sqlitestore is a SQLite-backed pinauth.CredentialStore using the
// pure-Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/pinauth"
	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS pin_credentials (
	principal_id    TEXT PRIMARY KEY,
	salt            TEXT NOT NULL,
	hash            TEXT NOT NULL,
	active          INTEGER NOT NULL DEFAULT 1,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until    INTEGER,
	last_success_at INTEGER,
	updated_at      INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS principal_preferences (
	principal_id         TEXT PRIMARY KEY,
	second_factor_opt_in INTEGER NOT NULL DEFAULT 0,
	capture_mode         TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS principal_roles (
	principal_id TEXT NOT NULL,
	role         TEXT NOT NULL,
	PRIMARY KEY (principal_id, role)
)`,
}

// Store keeps credential rows in the pin_credentials table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ pinauth.CredentialStore       = (*Store)(nil)
	_ pinauth.AtomicFailureRecorder = (*Store)(nil)
	_ pinauth.SuccessRecorder       = (*Store)(nil)
)

// Open opens or creates the database at path and ensures the schema. Use
// ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already open database and ensures the schema.
func New(db *sql.DB) (*Store, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

// Get loads the row for principalID.
func (s *Store) Get(ctx context.Context, principalID string) (*pinauth.PinCredential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT salt, hash, active, failed_attempts, locked_until, last_success_at
		FROM pin_credentials WHERE principal_id = ?`, principalID)

	var (
		c           = pinauth.PinCredential{PrincipalID: principalID}
		active      int
		lockedUntil sql.NullInt64
		lastSuccess sql.NullInt64
	)
	err := row.Scan(&c.Salt, &c.Hash, &active, &c.FailedAttempts, &lockedUntil, &lastSuccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pinauth.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	c.Active = active == 1
	c.LockedUntil = fromNullNanos(lockedUntil)
	c.LastSuccessAt = fromNullNanos(lastSuccess)
	return &c, nil
}

// Upsert writes salt and hash, reactivates the row and clears the lockout
// state in one statement.
func (s *Store) Upsert(ctx context.Context, principalID, salt, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pin_credentials (principal_id, salt, hash, active, failed_attempts, locked_until, updated_at)
		VALUES (?, ?, ?, 1, 0, NULL, ?)
		ON CONFLICT(principal_id) DO UPDATE SET
			salt = excluded.salt,
			hash = excluded.hash,
			active = 1,
			failed_attempts = 0,
			locked_until = NULL,
			updated_at = excluded.updated_at`,
		principalID, salt, hash, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return pinauth.ErrCredentialNotFound
	}
	return nil
}

func (s *Store) IncrementFailedAttempts(ctx context.Context, principalID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		UPDATE pin_credentials SET failed_attempts = failed_attempts + 1, updated_at = ?
		WHERE principal_id = ?
		RETURNING failed_attempts`, s.now().UnixNano(), principalID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, pinauth.ErrCredentialNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return n, nil
}

func (s *Store) SetLock(ctx context.Context, principalID string, until time.Time) error {
	return s.exec(ctx, "set lock",
		`UPDATE pin_credentials SET locked_until = ?, updated_at = ? WHERE principal_id = ?`,
		until.UnixNano(), s.now().UnixNano(), principalID)
}

func (s *Store) ResetAttempts(ctx context.Context, principalID string) error {
	return s.exec(ctx, "reset attempts",
		`UPDATE pin_credentials SET failed_attempts = 0, locked_until = NULL, updated_at = ? WHERE principal_id = ?`,
		s.now().UnixNano(), principalID)
}

func (s *Store) SetLastSuccess(ctx context.Context, principalID string, when time.Time) error {
	return s.exec(ctx, "set last success",
		`UPDATE pin_credentials SET last_success_at = ?, updated_at = ? WHERE principal_id = ?`,
		toNullNanos(&when), s.now().UnixNano(), principalID)
}

func (s *Store) Deactivate(ctx context.Context, principalID string) error {
	return s.exec(ctx, "deactivate",
		`UPDATE pin_credentials SET active = 0, updated_at = ? WHERE principal_id = ?`,
		s.now().UnixNano(), principalID)
}

// RecordFailure increments the counter and sets locked_until once it reaches
// maxAttempts, in one UPDATE.
func (s *Store) RecordFailure(ctx context.Context, principalID string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		UPDATE pin_credentials SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE WHEN failed_attempts + 1 >= ? THEN ? ELSE locked_until END,
			updated_at = ?
		WHERE principal_id = ?
		RETURNING failed_attempts`,
		maxAttempts, lockUntil.UnixNano(), s.now().UnixNano(), principalID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, pinauth.ErrCredentialNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("record failure: %w", err)
	}
	return n, n >= maxAttempts, nil
}

// RecordSuccess clears the lockout state and stamps when in one UPDATE.
func (s *Store) RecordSuccess(ctx context.Context, principalID string, when time.Time) error {
	return s.exec(ctx, "record success",
		`UPDATE pin_credentials SET failed_attempts = 0, locked_until = NULL, last_success_at = ?, updated_at = ?
		WHERE principal_id = ?`,
		when.UnixNano(), s.now().UnixNano(), principalID)
}
