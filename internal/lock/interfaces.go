// Package lock provides local and distributed locking abstractions.
// Single-node deployments use in-memory locks; multi-instance deployments
// can switch to Redis-based locks without changing business logic.
package lock

import (
	"context"
	"time"
)

// Locker defines the interface for coordinating exclusive operations.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held elsewhere.
	// The lock expires automatically after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock, retrying up to
	// maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for the portal's coordination points.
var Keys = lockKeys{}

type lockKeys struct{}

// WorkspaceCreate returns the lock key guarding first-time creation of a
// workspace namespace. Concurrent first requests for the same workspace
// serialize on this key so exactly one creation takes effect.
func (lockKeys) WorkspaceCreate(workspaceID string) string {
	return "lock:workspace:create:" + workspaceID
}

// StoreBootstrap returns the lock key guarding first-boot seeding of the
// credential store from AUTH_ACCOUNTS.
func (lockKeys) StoreBootstrap() string {
	return "lock:store:bootstrap"
}
