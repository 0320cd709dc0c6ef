package resolve

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

func newDiskCache(t *testing.T, dir string) *Cache {
	t.Helper()
	cache, err := NewCache(time.Minute, WithDir(dir))
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return cache
}

func TestCache_SharedAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	newDiskCache(t, dir).Set("org-1", fixture())

	got, ok := newDiskCache(t, dir).Get("org-1")
	require.True(t, ok)
	assert.Len(t, got, 3)

	_, ok = newDiskCache(t, dir).Get("org-2")
	assert.False(t, ok, "scopes do not share listings")
}

func TestCache_PersistedListingExpires(t *testing.T) {
	dir := t.TempDir()
	writer := newDiskCache(t, dir)
	writer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	writer.Set("org-1", fixture())

	_, ok := newDiskCache(t, dir).Get("org-1")
	assert.False(t, ok)
}

func TestCache_InvalidateRemovesFile(t *testing.T) {
	dir := t.TempDir()
	cache := newDiskCache(t, dir)
	cache.Set("org-1", fixture())
	_, err := os.Stat(cache.path("org-1"))
	require.NoError(t, err)

	cache.Invalidate("org-1")
	_, err = os.Stat(cache.path("org-1"))
	assert.True(t, os.IsNotExist(err))
	_, ok := newDiskCache(t, dir).Get("org-1")
	assert.False(t, ok)
}

func TestCache_ScopeNotWrittenInClear(t *testing.T) {
	dir := t.TempDir()
	cache := newDiskCache(t, dir)
	cache.Set("org-1\x00secret-key", fixture())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "secret")
	data, err := os.ReadFile(cache.path("org-1\x00secret-key"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-key")
}

// Two invocations: the second starts from the first one's listing and
// refreshes exactly once for an agent created in between.
func TestResolve_RefreshOnceAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	lister := &stubLister{agents: fixture()}

	first := New(lister, "org-1", newDiskCache(t, dir), nil, WithOutput(&bytes.Buffer{}))
	_, err := first.Resolve(t.Context(), "Bar", Options{Silent: true})
	require.NoError(t, err)
	require.Equal(t, 1, lister.calls)

	second := New(lister, "org-1", newDiskCache(t, dir), nil, WithOutput(&bytes.Buffer{}))
	id, err := second.Resolve(t.Context(), "bar", Options{Silent: true})
	require.NoError(t, err)
	assert.Equal(t, idBar, id)
	assert.Equal(t, 1, lister.calls, "served from the persisted listing")

	lister.set(append(fixture(), api.Agent{ID: "4fb07d42-ae95-4ff8-bfb3-91be7d7e5e05", Name: "Fresh", CreatedAt: day}))
	third := New(lister, "org-1", newDiskCache(t, dir), nil, WithOutput(&bytes.Buffer{}))
	id, err = third.Resolve(t.Context(), "fresh", Options{Silent: true})
	require.NoError(t, err)
	assert.Equal(t, "4fb07d42-ae95-4ff8-bfb3-91be7d7e5e05", id)
	assert.Equal(t, 2, lister.calls)
}
