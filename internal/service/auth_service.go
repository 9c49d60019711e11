package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/auth"
	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/metrics"
	"github.com/prn-tf/graphrag-portal/internal/repository"
)

// AuthService is the authentication gateway. It verifies credentials
// against the account store and issues workspace-scoped access tokens.
type AuthService struct {
	repo   repository.AccountRepository
	tokens *auth.TokenService
	logger zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo repository.AccountRepository, tokens *auth.TokenService, logger zerolog.Logger) *AuthService {
	return &AuthService{
		repo:   repo,
		tokens: tokens,
		logger: logger.With().Str("service", "auth").Logger(),
	}
}

// LoginOutput is the result of a successful login.
type LoginOutput struct {
	Token     string
	TokenType string
	Username  string
	Email     string
	Workspace string
}

// Login verifies the given credentials and issues an access token.
// An unknown username and a wrong password both return
// domain.ErrInvalidCredentials so the response never reveals which
// usernames exist. A disabled account returns domain.ErrAccountDisabled.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginOutput, error) {
	account, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			s.logger.Warn().Str("username", username).Msg("login failed: unknown username")
			return nil, domain.ErrInvalidCredentials
		}
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !account.CanAuthenticate() {
		metrics.LoginAttempts.WithLabelValues("account_disabled").Inc()
		s.logger.Warn().Str("username", username).Msg("login failed: account disabled")
		return nil, domain.ErrAccountDisabled
	}

	if !domain.VerifyPassword(password, account.PasswordHash) {
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		s.logger.Warn().Str("username", username).Msg("login failed: wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("username", username).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: failed to issue token", ErrInternalError)
	}

	// Last-login tracking is best effort; a failed write must not
	// reject an otherwise valid login.
	now := time.Now().UTC()
	account.LastLoginAt = &now
	if err := s.repo.Update(ctx, account); err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("failed to record last login time")
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	metrics.TokensIssued.Inc()
	s.logger.Info().
		Str("username", account.Username).
		Str("workspace", account.Workspace).
		Msg("login succeeded")

	return &LoginOutput{
		Token:     token,
		TokenType: "bearer",
		Username:  account.Username,
		Email:     account.Email,
		Workspace: account.Workspace,
	}, nil
}

// ChangePassword verifies the caller's current password before
// replacing it. The old-password check runs even for disabled accounts
// so an operator re-enabling one does not inherit a stale credential.
func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidPassword
	}

	account, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !domain.VerifyPassword(oldPassword, account.PasswordHash) {
		s.logger.Warn().Str("username", username).Msg("change password failed: wrong current password")
		return domain.ErrInvalidCredentials
	}

	newHash, err := domain.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}
	account.PasswordHash = newHash

	if err := s.repo.Update(ctx, account); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("username", username).Msg("password changed")
	return nil
}

// Me returns the account behind an authenticated identity.
func (s *AuthService) Me(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return account, nil
}
