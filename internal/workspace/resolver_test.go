package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/graphrag-portal/internal/lock"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(t.TempDir(), lock.NewMemoryLocker(), zerolog.Nop())
}

func TestResolverIDDeterministic(t *testing.T) {
	r := newTestResolver(t)

	assert.Equal(t, "user_admin", r.ID("admin"))
	assert.Equal(t, r.ID("admin"), r.ID("admin"))
	assert.NotEqual(t, r.ID("alice"), r.ID("bob"))
}

func TestResolveCreatesNamespaceOnce(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)

	h1, err := r.Resolve(ctx, "user_alice")
	require.NoError(t, err)

	info, err := os.Stat(h1.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Second resolution is idempotent and returns the same handle.
	h2, err := r.Resolve(ctx, "user_alice")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestResolveConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	r := NewResolver(root, lock.NewMemoryLocker(), zerolog.Nop())

	const callers = 16
	handles := make([]Handle, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = r.Resolve(ctx, "user_shared")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, handles[0], handles[i], "all callers converge on the same handle")
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "exactly one namespace created")
}

func TestPurgeRemovesNamespace(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)

	h, err := r.Resolve(ctx, "user_temp")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(h.Dir, "doc.txt"), []byte("data"), 0o644))

	require.NoError(t, r.Purge(ctx, "user_temp"))
	_, err = os.Stat(h.Dir)
	assert.True(t, os.IsNotExist(err))

	// Purging an absent namespace is not an error.
	assert.NoError(t, r.Purge(ctx, "user_temp"))
}
