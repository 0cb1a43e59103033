// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"attendance/internal/domain"

	_ "github.com/lib/pq"
)

// Every store call gets a bounded deadline; infrastructure failures are
// retried once with a short backoff before surfacing as
// domain.ErrStorageUnavailable.
const (
	callTimeout  = 5 * time.Second
	retryBackoff = 250 * time.Millisecond
)

// DB wraps a *sql.DB and implements the domain repository ports.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			person_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			state TEXT NOT NULL CHECK(state IN ('working','on_break')),
			started_at TIMESTAMPTZ NOT NULL,
			break_started_at TIMESTAMPTZ,
			break_seconds BIGINT NOT NULL DEFAULT 0,
			CHECK ((state = 'on_break') = (break_started_at IS NOT NULL))
		);`,
		`CREATE TABLE IF NOT EXISTS history (
			id BIGSERIAL PRIMARY KEY,
			person_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			day TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			worked_seconds BIGINT NOT NULL,
			break_seconds BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_person_day ON history(person_id, day);`,
		`CREATE INDEX IF NOT EXISTS idx_history_day ON history(day);`,
		`CREATE TABLE IF NOT EXISTS breaks (
			id BIGSERIAL PRIMARY KEY,
			person_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			reason TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			duration_seconds BIGINT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_breaks_person_started ON breaks(person_id, started_at);`,
		`CREATE TABLE IF NOT EXISTS scheduler_runs (
			timer TEXT PRIMARY KEY,
			last_day TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS operators (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS auth_sessions (
			token TEXT PRIMARY KEY,
			operator_id BIGINT NOT NULL REFERENCES operators(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires_at ON auth_sessions(expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// transact runs fn inside a transaction with a bounded deadline.
// Precondition failures from the state machine pass through untouched;
// infrastructure failures get one retry and are then wrapped as
// ErrStorageUnavailable.
func (d *DB) transact(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	err := d.attempt(ctx, fn)
	if err == nil || isPrecondition(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, ctx.Err())
	case <-time.After(retryBackoff):
	}

	if err = d.attempt(ctx, fn); err == nil || isPrecondition(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func (d *DB) attempt(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	tx, err := d.sql.BeginTx(cctx, nil)
	if err != nil {
		return err
	}
	if err := fn(cctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// run is the non-transactional counterpart of transact, for reads.
func (d *DB) run(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	err := fn(cctx)
	cancel()
	if err == nil || isPrecondition(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, ctx.Err())
	case <-time.After(retryBackoff):
	}

	cctx, cancel = context.WithTimeout(ctx, callTimeout)
	defer cancel()
	if err = fn(cctx); err == nil || isPrecondition(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func isPrecondition(err error) bool {
	return errors.Is(err, domain.ErrAlreadyWorking) ||
		errors.Is(err, domain.ErrNotWorking) ||
		errors.Is(err, domain.ErrAlreadyOnBreak) ||
		errors.Is(err, domain.ErrNotOnBreak)
}
