package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"attendance/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrTokenNotFound indicates the login token does not exist.
	ErrTokenNotFound = errors.New("login token not found")
	// ErrTokenExpired indicates the login token has expired.
	ErrTokenExpired = errors.New("login token expired")
	// ErrOperatorNotFound indicates the operator does not exist.
	ErrOperatorNotFound = errors.New("operator not found")
)

// AuthService authenticates operators of the command surface and
// manages their login tokens.
type AuthService struct {
	operators domain.OperatorRepository
	tokens    domain.AuthSessionRepository
	ttl       time.Duration
}

// NewAuthService creates an AuthService issuing tokens with the given
// lifetime.
func NewAuthService(operators domain.OperatorRepository, tokens domain.AuthSessionRepository, ttl time.Duration) *AuthService {
	return &AuthService{operators: operators, tokens: tokens, ttl: ttl}
}

// Login checks the password and issues a login token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	op, err := s.operators.OperatorByUsername(ctx, username)
	if err != nil || op == nil || op.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(ctx, op.ID)
}

// LoginSSO issues a token for an externally authenticated operator,
// provisioning the account on first login.
func (s *AuthService) LoginSSO(ctx context.Context, username string) (string, error) {
	op, err := s.operators.OperatorByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if op == nil {
		// SSO operators never log in with a password; keep the hash empty.
		op, err = s.operators.CreateOperator(ctx, username, "")
		if err != nil {
			// Lost a provisioning race; the row should exist now.
			op, err = s.operators.OperatorByUsername(ctx, username)
			if err != nil || op == nil {
				return "", err
			}
		}
	}
	return s.issueToken(ctx, op.ID)
}

// Logout invalidates a login token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.DeleteAuthSession(ctx, token)
}

// Validate resolves a login token to its operator.
func (s *AuthService) Validate(ctx context.Context, token string) (*domain.Operator, error) {
	sess, err := s.tokens.AuthSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrTokenNotFound
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.tokens.DeleteAuthSession(ctx, token)
		return nil, ErrTokenExpired
	}

	op, err := s.operators.OperatorByID(ctx, sess.OperatorID)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrOperatorNotFound
	}
	return op, nil
}

// Bootstrap creates the first operator if none exist yet.
func (s *AuthService) Bootstrap(ctx context.Context, username, password string) error {
	count, err := s.operators.CountOperators(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("operators already exist")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.operators.CreateOperator(ctx, username, string(hash))
	return err
}

func (s *AuthService) issueToken(ctx context.Context, operatorID int64) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(b)

	if err := s.tokens.CreateAuthSession(ctx, operatorID, token, time.Now().Add(s.ttl)); err != nil {
		return "", err
	}
	return token, nil
}
