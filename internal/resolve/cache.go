package resolve

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/zeebo/blake3"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

// Cache holds agent listings per scope for a short freshness window. Entries
// live in memory and, when a directory is configured, in one file per scope
// so that consecutive CLI invocations share a listing.
type Cache struct {
	c   *ristretto.Cache[string, []api.Agent]
	ttl time.Duration
	dir string
	now func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithDir persists listings under dir.
func WithDir(dir string) CacheOption {
	return func(c *Cache) { c.dir = dir }
}

// cacheFile is the on-disk form of one listing.
type cacheFile struct {
	FetchedAt time.Time   `json:"fetched_at"`
	Agents    []api.Agent `json:"agents"`
}

// NewCache creates a listing cache whose entries expire after ttl.
func NewCache(ttl time.Duration, opts ...CacheOption) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []api.Agent]{
		NumCounters: 1000,
		MaxCost:     1 << 20, // cost is counted in agents
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating listing cache: %w", err)
	}
	cache := &Cache{c: c, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// Get returns the cached listing for scope.
func (c *Cache) Get(scope string) ([]api.Agent, bool) {
	if agents, ok := c.c.Get(scope); ok {
		return agents, true
	}
	agents, remaining, ok := c.load(scope)
	if !ok {
		return nil, false
	}
	c.c.SetWithTTL(scope, agents, int64(len(agents))+1, remaining)
	c.c.Wait()
	return agents, true
}

// Set stores a listing for scope. The write is visible to Get on return.
func (c *Cache) Set(scope string, agents []api.Agent) {
	c.c.SetWithTTL(scope, agents, int64(len(agents))+1, c.ttl)
	c.c.Wait()
	// A failed write only costs the next invocation a refetch.
	_ = c.save(scope, agents)
}

// Invalidate drops the listing for scope.
func (c *Cache) Invalidate(scope string) {
	c.c.Del(scope)
	c.c.Wait()
	if c.dir != "" {
		_ = os.Remove(c.path(scope))
	}
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}

// path names the file for scope. The scope may carry credentials, so only
// its hash reaches the disk.
func (c *Cache) path(scope string) string {
	sum := blake3.Sum256([]byte(scope))
	return filepath.Join(c.dir, "agents-"+hex.EncodeToString(sum[:8])+".json")
}

// load reads a persisted listing and reports how long it stays fresh.
func (c *Cache) load(scope string) ([]api.Agent, time.Duration, bool) {
	if c.dir == "" {
		return nil, 0, false
	}
	data, err := os.ReadFile(c.path(scope))
	if err != nil {
		return nil, 0, false
	}
	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, 0, false
	}
	age := c.now().Sub(f.FetchedAt)
	if age < 0 || age >= c.ttl {
		return nil, 0, false
	}
	return f.Agents, c.ttl - age, true
}

func (c *Cache) save(scope string, agents []api.Agent) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(cacheFile{FetchedAt: c.now(), Agents: agents})
	if err != nil {
		return err
	}
	path := c.path(scope)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
