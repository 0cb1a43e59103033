package domain

import (
	"context"
	"time"
)

// Operator is someone allowed to use the command surface: the chat
// gateway's service account or a human looking at status and reports.
type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// AuthSession is an opaque login token for an operator. Distinct from
// Session, which is a person's work session.
type AuthSession struct {
	Token      string
	OperatorID int64
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// OperatorRepository defines the port for operator persistence.
type OperatorRepository interface {
	OperatorByUsername(ctx context.Context, username string) (*Operator, error)
	OperatorByID(ctx context.Context, id int64) (*Operator, error)
	CreateOperator(ctx context.Context, username, passwordHash string) (*Operator, error)
	CountOperators(ctx context.Context) (int, error)
}

// AuthSessionRepository defines the port for login-token persistence.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, operatorID int64, token string, expiresAt time.Time) error
	AuthSessionByToken(ctx context.Context, token string) (*AuthSession, error)
	DeleteAuthSession(ctx context.Context, token string) error
	DeleteExpiredAuthSessions(ctx context.Context) error
}
