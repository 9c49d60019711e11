// Package jsonfile provides a file-backed credential store.
// The entire store is a single JSON document holding an ordered array of
// account records. Every mutation re-reads that document and rewrites it
// atomically under an exclusive cross-process file lock, so the running
// server and the admin CLI can operate on the same file out-of-band
// without losing each other's updates.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/repository"
)

// Store implements repository.AccountRepository backed by a JSON file.
//
// The file on disk is the single source of truth. The in-memory snapshot
// is only a read cache, refreshed whenever the file changes; mutations
// never trust it and always start from a fresh read of the document.
type Store struct {
	path     string
	lockPath string
	logger   zerolog.Logger

	// mu serializes access within this process; the flock on lockPath
	// serializes across processes sharing the same file.
	mu sync.Mutex

	accounts []*domain.Account
	index    map[string]int
	modTime  time.Time
	size     int64
	loaded   bool
}

// New opens (or initializes) the credential store at path.
// A missing or empty file yields an empty store; a file that exists but
// cannot be decoded is fatal and surfaces domain.ErrStoreCorrupt.
func New(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:     path,
		lockPath: path + ".lock",
		logger:   logger.With().Str("store", "jsonfile").Logger(),
		index:    make(map[string]int),
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	// Validate the persisted document up front: a corrupt store must be
	// fatal at startup, not at first use.
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	return s, nil
}

// acquireFileLock takes the cross-process lock guarding the store file.
// The lock lives on a sidecar file because the data file itself is
// replaced by rename on every write, which would orphan a lock held on it.
func (s *Store) acquireFileLock(exclusive bool) (*os.File, error) {
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open store lock file: %w", err)
	}

	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to lock credential store: %w", err)
	}
	return f, nil
}

func releaseFileLock(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}

// decodeFile reads and validates the persisted document. A missing or
// empty file is an empty store; an undecodable one is ErrStoreCorrupt.
func (s *Store) decodeFile() ([]*domain.Account, map[string]int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, make(map[string]int), nil
		}
		return nil, nil, fmt.Errorf("failed to read credential store: %w", err)
	}

	if len(data) == 0 {
		return nil, make(map[string]int), nil
	}

	var accounts []*domain.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		// Refuse to operate rather than proceed with partial data.
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrStoreCorrupt, s.path, err)
	}

	index := make(map[string]int, len(accounts))
	for i, acct := range accounts {
		if acct.Username == "" {
			return nil, nil, fmt.Errorf("%w: %s: record %d has no username", domain.ErrStoreCorrupt, s.path, i)
		}
		if _, dup := index[acct.Username]; dup {
			return nil, nil, fmt.Errorf("%w: %s: duplicate username %q", domain.ErrStoreCorrupt, s.path, acct.Username)
		}
		index[acct.Username] = i
	}

	return accounts, index, nil
}

// refreshLocked reloads the read cache if the file changed on disk, for
// example through the admin CLI while the server is running.
// Caller must hold mu.
func (s *Store) refreshLocked() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat credential store: %w", err)
		}
		if !s.loaded {
			s.logger.Info().Str("path", s.path).Msg("credential store not found, starting empty")
		}
		s.setSnapshotLocked(nil, make(map[string]int), time.Time{}, 0)
		return nil
	}

	if s.loaded && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return nil
	}

	accounts, index, err := s.decodeFile()
	if err != nil {
		return err
	}

	s.setSnapshotLocked(accounts, index, info.ModTime(), info.Size())
	s.logger.Debug().Int("accounts", len(accounts)).Msg("credential store loaded")
	return nil
}

// setSnapshotLocked replaces the read cache. Caller must hold mu.
func (s *Store) setSnapshotLocked(accounts []*domain.Account, index map[string]int, modTime time.Time, size int64) {
	s.accounts = accounts
	s.index = index
	s.modTime = modTime
	s.size = size
	s.loaded = true
}

// persist writes the given snapshot to disk atomically.
func (s *Store) persist(accounts []*domain.Account) error {
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write credential store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync credential store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp store file: %w", err)
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set store file mode: %w", err)
	}

	// Rename is atomic on POSIX filesystems: readers observe either the
	// old document or the new one, never a torn write.
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace credential store: %w", err)
	}

	return nil
}

// mutate runs one read-modify-write cycle: it takes the exclusive
// cross-process lock, re-reads the persisted document, applies fn, and
// writes the result back atomically. fn receives the freshly loaded
// records, so out-of-band changes made by another process are never
// overwritten.
func (s *Store) mutate(fn func(accounts []*domain.Account, index map[string]int) ([]*domain.Account, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.acquireFileLock(true)
	if err != nil {
		return err
	}
	defer releaseFileLock(lock)

	accounts, index, err := s.decodeFile()
	if err != nil {
		return err
	}

	updated, err := fn(accounts, index)
	if err != nil {
		return err
	}

	if err := s.persist(updated); err != nil {
		return err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("failed to stat credential store: %w", err)
	}

	newIndex := make(map[string]int, len(updated))
	for i, acct := range updated {
		newIndex[acct.Username] = i
	}
	s.setSnapshotLocked(updated, newIndex, info.ModTime(), info.Size())
	return nil
}

// clone returns a copy of an account so callers cannot mutate store state.
func clone(a *domain.Account) *domain.Account {
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// Create persists a new account.
func (s *Store) Create(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.mutate(func(accounts []*domain.Account, index map[string]int) ([]*domain.Account, error) {
		if _, exists := index[account.Username]; exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, account.Username)
		}
		return append(accounts, clone(account)), nil
	})
}

// Get retrieves an account by username.
func (s *Store) Get(ctx context.Context, username string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.acquireFileLock(false)
	if err != nil {
		return nil, err
	}
	defer releaseFileLock(lock)

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	i, exists := s.index[username]
	if !exists {
		return nil, repository.ErrNotFound
	}
	return clone(s.accounts[i]), nil
}

// Update replaces an existing account record.
func (s *Store) Update(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.mutate(func(accounts []*domain.Account, index map[string]int) ([]*domain.Account, error) {
		i, exists := index[account.Username]
		if !exists {
			return nil, repository.ErrNotFound
		}
		accounts[i] = clone(account)
		return accounts, nil
	})
}

// Delete removes an account by username. Workspace data is untouched.
func (s *Store) Delete(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.mutate(func(accounts []*domain.Account, index map[string]int) ([]*domain.Account, error) {
		i, exists := index[username]
		if !exists {
			return nil, repository.ErrNotFound
		}
		return append(append([]*domain.Account{}, accounts[:i]...), accounts[i+1:]...), nil
	})
}

// List returns all accounts in insertion order.
func (s *Store) List(ctx context.Context) ([]*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.acquireFileLock(false)
	if err != nil {
		return nil, err
	}
	defer releaseFileLock(lock)

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	out := make([]*domain.Account, len(s.accounts))
	for i, acct := range s.accounts {
		out[i] = clone(acct)
	}
	return out, nil
}

// Close is a no-op for the file-backed store.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements AccountRepository.
var _ repository.AccountRepository = (*Store)(nil)
