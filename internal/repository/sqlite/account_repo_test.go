package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/repository"
)

func newTestRepo(t *testing.T) (repository.AccountRepository, *DB) {
	t.Helper()
	db, err := NewDB(context.Background(), DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAccountRepository(db), db
}

// ===== Round Trip =====

func TestAccountRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	account := domain.NewAccount("admin", "admin@example.com", "hash")
	lastLogin := time.Now().UTC().Truncate(time.Second)
	account.LastLoginAt = &lastLogin
	require.NoError(t, repo.Create(ctx, account))

	got, err := repo.Get(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, "admin@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, "user_admin", got.Workspace)
	assert.True(t, got.Active)
	assert.False(t, got.CreatedAt.IsZero())
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(lastLogin))

	err = repo.Create(ctx, domain.NewAccount("admin", "", "other"))
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestAccountRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, err := repo.Get(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, repo.Update(ctx, domain.NewAccount("ghost", "", "h")), repository.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "ghost"), repository.ErrNotFound)
}

// ===== Corrupt Rows =====

func TestAccountRepositoryRejectsCorruptTimestamp(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, domain.NewAccount("admin", "", "hash")))

	_, err := db.ExecContext(ctx, `UPDATE accounts SET created_at = 'not-a-timestamp' WHERE username = ?`, "admin")
	require.NoError(t, err)

	// A row that no longer decodes surfaces an error instead of a
	// zero-time account.
	_, err = repo.Get(ctx, "admin")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, err.Error(), "created_at")
}
