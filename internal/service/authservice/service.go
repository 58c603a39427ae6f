package authservice

import (
	"context"
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	apperror "stockdash/internal/errors"
	"stockdash/internal/pkg/logger"
)

// RoleAdmin is the only role; the dashboard has a single administrator.
const RoleAdmin = "admin"

// TokenIssuer is the part of the token service used at login.
type TokenIssuer interface {
	GenerateToken(subject string, role string) (string, error)
}

// Credentials of the administrator, taken from configuration.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Service authenticates the administrator and issues access tokens.
type Service struct {
	creds  Credentials
	tokens TokenIssuer
	logger logger.Logger
}

// NewService creates the auth service.
func NewService(creds Credentials, tokens TokenIssuer, log logger.Logger) *Service {
	return &Service{creds: creds, tokens: tokens, logger: log}
}

// Login checks username and password and returns a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperror.NewUnauthorizedError("username and password are required")
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) == 1
	// The hash is checked even for an unknown username.
	passErr := bcrypt.CompareHashAndPassword([]byte(s.creds.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		s.logger.Warn("login rejected", map[string]interface{}{"username": username})
		return "", apperror.NewUnauthorizedError("invalid credentials")
	}

	tok, err := s.tokens.GenerateToken(username, RoleAdmin)
	if err != nil {
		return "", apperror.NewInternalError("failed to generate token", err)
	}

	s.logger.Info("login succeeded", map[string]interface{}{"username": username})
	return tok, nil
}
