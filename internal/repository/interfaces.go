// Package repository defines data access interfaces for the GraphRAG portal.
// These interfaces abstract the credential store, allowing for different
// implementations (JSON file, SQLite, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/graphrag-portal/internal/domain"
)

// AccountRepository defines the interface for credential store access.
//
// Implementations must guarantee that concurrent readers observe a
// consistent snapshot (no torn writes) and that every mutation is a
// read-modify-write cycle under an exclusive lock.
type AccountRepository interface {
	// Create persists a new account.
	// Returns domain.ErrDuplicateUsername if the username is taken.
	Create(ctx context.Context, account *domain.Account) error

	// Get retrieves an account by username.
	// Returns ErrNotFound if no such account exists.
	Get(ctx context.Context, username string) (*domain.Account, error)

	// Update replaces an existing account record.
	// Returns ErrNotFound if no such account exists.
	Update(ctx context.Context, account *domain.Account) error

	// Delete removes an account by username.
	// Returns ErrNotFound if no such account exists.
	// Workspace data is never touched; purging it is a separate,
	// explicit operation.
	Delete(ctx context.Context, username string) error

	// List returns all accounts in insertion order, stable across loads.
	List(ctx context.Context) ([]*domain.Account, error)

	// Close releases any resources held by the store.
	Close() error
}
