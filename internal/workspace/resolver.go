// Package workspace maps authenticated identities to isolated storage
// namespaces. Every piece of user data the content service touches lives
// under exactly one workspace directory.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/lock"
)

const (
	// createLockTTL bounds how long a crashed creator can block others.
	createLockTTL = 10 * time.Second

	// createLockRetries and createLockDelay govern how long a concurrent
	// caller waits for the first creator to finish.
	createLockRetries = 50
	createLockDelay   = 100 * time.Millisecond
)

// Handle is a resolved reference to a workspace's storage namespace.
// It identifies the namespace; it does not open or lock any content
// storage inside it.
type Handle struct {
	// ID is the workspace identifier (e.g. "user_admin").
	ID string

	// Dir is the absolute or root-relative directory backing the namespace.
	Dir string
}

// Resolver derives workspace identifiers and materializes their backing
// namespaces on first access.
type Resolver struct {
	root   string
	locker lock.Locker
	logger zerolog.Logger
}

// NewResolver creates a Resolver rooted at the given directory.
func NewResolver(root string, locker lock.Locker, logger zerolog.Logger) *Resolver {
	return &Resolver{
		root:   root,
		locker: locker,
		logger: logger.With().Str("component", "workspace").Logger(),
	}
}

// ID returns the deterministic workspace identifier for a username.
func (r *Resolver) ID(username string) string {
	return domain.WorkspaceID(username)
}

// Resolve returns the namespace handle for a workspace ID, creating the
// backing directory on first access. Resolution is deterministic and
// idempotent: concurrent first callers for the same ID serialize on a
// creation lock, at most one creation takes effect, and every caller
// converges on the same handle.
func (r *Resolver) Resolve(ctx context.Context, workspaceID string) (Handle, error) {
	if workspaceID == "" {
		return Handle{}, fmt.Errorf("workspace ID must not be empty")
	}

	dir := filepath.Join(r.root, workspaceID)
	handle := Handle{ID: workspaceID, Dir: dir}

	// Fast path: namespace already exists.
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return handle, nil
	}

	key := lock.Keys.WorkspaceCreate(workspaceID)
	acquired, err := r.locker.AcquireWithRetry(ctx, key, createLockTTL, createLockRetries, createLockDelay)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to acquire workspace creation lock: %w", err)
	}
	if !acquired {
		return Handle{}, fmt.Errorf("timed out waiting for workspace creation: %s", workspaceID)
	}
	defer func() {
		_, _ = r.locker.Release(ctx, key)
	}()

	// MkdirAll is a no-op if another caller created the directory between
	// our stat and the lock acquisition.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("failed to create workspace namespace: %w", err)
	}

	r.logger.Info().Str("workspace", workspaceID).Str("dir", dir).Msg("workspace namespace ready")
	return handle, nil
}

// Purge removes a workspace's backing directory and all data within.
// Never called implicitly: account deletion leaves the namespace intact,
// and operators must request purging explicitly.
func (r *Resolver) Purge(ctx context.Context, workspaceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if workspaceID == "" {
		return fmt.Errorf("workspace ID must not be empty")
	}

	dir := filepath.Join(r.root, workspaceID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat workspace namespace: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to purge workspace namespace: %w", err)
	}

	r.logger.Info().Str("workspace", workspaceID).Msg("workspace namespace purged")
	return nil
}
