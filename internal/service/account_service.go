// Package service provides the business logic for the GraphRAG portal.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/lock"
	"github.com/prn-tf/graphrag-portal/internal/repository"
)

const (
	bootstrapLockTTL     = 30 * time.Second
	bootstrapLockRetries = 20
	bootstrapLockDelay   = 250 * time.Millisecond
)

// AccountService handles account management operations.
// It backs both the admin CLI and the gateway's registration endpoint.
type AccountService struct {
	repo   repository.AccountRepository
	locker lock.Locker
	logger zerolog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo repository.AccountRepository, locker lock.Locker, logger zerolog.Logger) *AccountService {
	return &AccountService{
		repo:   repo,
		locker: locker,
		logger: logger.With().Str("service", "account").Logger(),
	}
}

// CreateAccountInput contains the data needed to create a new account.
type CreateAccountInput struct {
	Username string
	Email    string
	Password string
}

// Create creates a new active account with a freshly hashed password.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	passwordHash, err := domain.HashPassword(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	account := domain.NewAccount(input.Username, input.Email, passwordHash)
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("username", account.Username).
		Str("workspace", account.Workspace).
		Msg("account created")

	return account, nil
}

// Get retrieves an account by username.
func (s *AccountService) Get(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return account, nil
}

// ResetPassword replaces an account's password hash.
func (s *AccountService) ResetPassword(ctx context.Context, username, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidPassword
	}

	account, err := s.Get(ctx, username)
	if err != nil {
		return err
	}

	newHash, err := domain.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}
	account.PasswordHash = newHash

	if err := s.repo.Update(ctx, account); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("username", username).Msg("password reset")
	return nil
}

// Toggle flips the account's active flag and returns the new state.
// Disabled accounts fail login but retain all workspace data.
func (s *AccountService) Toggle(ctx context.Context, username string) (bool, error) {
	account, err := s.Get(ctx, username)
	if err != nil {
		return false, err
	}

	account.Active = !account.Active
	if err := s.repo.Update(ctx, account); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("username", username).
		Bool("active", account.Active).
		Msg("account active status toggled")

	return account.Active, nil
}

// Delete removes the account record. The workspace namespace is left
// untouched; purging it is a separate, explicit operation.
func (s *AccountService) Delete(ctx context.Context, username string) error {
	if err := s.repo.Delete(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("username", username).Msg("account deleted")
	return nil
}

// List returns all accounts in insertion order.
func (s *AccountService) List(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return accounts, nil
}

// Bootstrap seeds the credential store from the AUTH_ACCOUNTS setting
// ("username:password[,username:password...]"). Seeding only happens when
// the store is empty and runs under an exclusive lock so concurrent
// first-boot instances apply it at most once.
func (s *AccountService) Bootstrap(ctx context.Context, seedAccounts string) error {
	seedAccounts = strings.TrimSpace(seedAccounts)
	if seedAccounts == "" {
		return nil
	}

	key := lock.Keys.StoreBootstrap()
	acquired, err := s.locker.AcquireWithRetry(ctx, key, bootstrapLockTTL, bootstrapLockRetries, bootstrapLockDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire bootstrap lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("timed out waiting for store bootstrap lock")
	}
	defer func() {
		_, _ = s.locker.Release(ctx, key)
	}()

	existing, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect credential store: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Debug().Int("accounts", len(existing)).Msg("credential store already populated, skipping seed")
		return nil
	}

	for _, pair := range strings.Split(seedAccounts, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		username, password, ok := strings.Cut(pair, ":")
		if !ok || username == "" || password == "" {
			return fmt.Errorf("malformed seed account entry %q: want username:password", pair)
		}

		if _, err := s.Create(ctx, CreateAccountInput{
			Username: username,
			Password: password,
		}); err != nil {
			return fmt.Errorf("failed to seed account %q: %w", username, err)
		}
	}

	s.logger.Info().Msg("credential store seeded from configuration")
	return nil
}

// validateCreateInput validates the input for creating an account.
func validateCreateInput(input CreateAccountInput) error {
	if len(input.Username) < 3 || len(input.Username) > 64 {
		return ErrInvalidUsername
	}
	if strings.ContainsAny(input.Username, " \t\n/\\:") {
		return ErrInvalidUsername
	}

	// Email is optional; validate format only when provided.
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			return ErrInvalidEmail
		}
	}

	if input.Password == "" {
		return ErrInvalidPassword
	}

	return nil
}
