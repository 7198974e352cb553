package tabular

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how stale a cached worksheet read may be.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	table   *Table
	expires time.Time
}

// CachedStore wraps a Store with a short-lived read cache. Writes go straight
// through and invalidate the written worksheet.
//
// Every invalidation bumps a generation counter. A fetch that started before
// the bump is returned to its caller but never stored.
type CachedStore struct {
	inner Store
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]cacheEntry
	gens      map[string]uint64
	epoch     uint64 // bumped by InvalidateAll
	names     []string
	namesTime time.Time
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
	}
}

func (c *CachedStore) Tables(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if c.names != nil && c.now().Before(c.namesTime.Add(c.ttl)) {
		names := append([]string(nil), c.names...)
		c.mu.Unlock()
		return names, nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	names, err := c.inner.Tables(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.names = append([]string(nil), names...)
		c.namesTime = c.now()
	}
	c.mu.Unlock()
	return names, nil
}

func (c *CachedStore) Read(ctx context.Context, name string) (*Table, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok && c.now().Before(e.expires) {
		t := e.table.Clone()
		c.mu.Unlock()
		return t, nil
	}
	gen, epoch := c.gens[name], c.epoch
	c.mu.Unlock()

	t, err := c.inner.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[name] == gen && c.epoch == epoch {
		c.entries[name] = cacheEntry{table: t.Clone(), expires: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return t, nil
}

func (c *CachedStore) Write(ctx context.Context, name string, header []string, rows []Row) error {
	// Invalidated on failure as well.
	defer c.Invalidate(name)
	return c.inner.Write(ctx, name, header, rows)
}

// Invalidate drops the cached copy of one worksheet.
func (c *CachedStore) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	c.gens[name]++
}

// InvalidateAll drops every cached worksheet and the worksheet list.
func (c *CachedStore) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.names = nil
	c.epoch++
}
