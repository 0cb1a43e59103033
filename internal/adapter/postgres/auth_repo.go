package postgres

import (
	"context"
	"database/sql"
	"time"

	"attendance/internal/domain"
)

var _ domain.OperatorRepository = (*DB)(nil)
var _ domain.AuthSessionRepository = (*DB)(nil)

// OperatorByUsername retrieves an operator by username.
func (d *DB) OperatorByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	return d.queryOperator(ctx,
		"SELECT id, username, password_hash, created_at FROM operators WHERE username = $1;", username)
}

// OperatorByID retrieves an operator by ID.
func (d *DB) OperatorByID(ctx context.Context, id int64) (*domain.Operator, error) {
	return d.queryOperator(ctx,
		"SELECT id, username, password_hash, created_at FROM operators WHERE id = $1;", id)
}

func (d *DB) queryOperator(ctx context.Context, query string, arg any) (*domain.Operator, error) {
	var out *domain.Operator
	err := d.run(ctx, func(ctx context.Context) error {
		var o domain.Operator
		err := d.sql.QueryRowContext(ctx, query, arg).
			Scan(&o.ID, &o.Username, &o.PasswordHash, &o.CreatedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		out = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOperator creates a new operator.
func (d *DB) CreateOperator(ctx context.Context, username, passwordHash string) (*domain.Operator, error) {
	var o domain.Operator
	err := d.run(ctx, func(ctx context.Context) error {
		return d.sql.QueryRowContext(ctx,
			`INSERT INTO operators (username, password_hash, created_at) VALUES ($1, $2, $3)
			 RETURNING id, username, password_hash, created_at;`,
			username, passwordHash, time.Now().UTC(),
		).Scan(&o.ID, &o.Username, &o.PasswordHash, &o.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOperators returns the total number of operators.
func (d *DB) CountOperators(ctx context.Context) (int, error) {
	var count int
	err := d.run(ctx, func(ctx context.Context) error {
		return d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM operators;").Scan(&count)
	})
	return count, err
}

// CreateAuthSession stores a login token.
func (d *DB) CreateAuthSession(ctx context.Context, operatorID int64, token string, expiresAt time.Time) error {
	return d.run(ctx, func(ctx context.Context) error {
		_, err := d.sql.ExecContext(ctx,
			"INSERT INTO auth_sessions (token, operator_id, expires_at, created_at) VALUES ($1, $2, $3, $4);",
			token, operatorID, expiresAt.UTC(), time.Now().UTC())
		return err
	})
}

// AuthSessionByToken retrieves a login token.
func (d *DB) AuthSessionByToken(ctx context.Context, token string) (*domain.AuthSession, error) {
	var out *domain.AuthSession
	err := d.run(ctx, func(ctx context.Context) error {
		var s domain.AuthSession
		err := d.sql.QueryRowContext(ctx,
			"SELECT token, operator_id, expires_at, created_at FROM auth_sessions WHERE token = $1;",
			token).Scan(&s.Token, &s.OperatorID, &s.ExpiresAt, &s.CreatedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		out = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAuthSession removes a login token.
func (d *DB) DeleteAuthSession(ctx context.Context, token string) error {
	return d.run(ctx, func(ctx context.Context) error {
		_, err := d.sql.ExecContext(ctx, "DELETE FROM auth_sessions WHERE token = $1;", token)
		return err
	})
}

// DeleteExpiredAuthSessions removes all expired login tokens.
func (d *DB) DeleteExpiredAuthSessions(ctx context.Context) error {
	return d.run(ctx, func(ctx context.Context) error {
		_, err := d.sql.ExecContext(ctx, "DELETE FROM auth_sessions WHERE expires_at < $1;", time.Now().UTC())
		return err
	})
}
