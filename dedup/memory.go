package dedup

import (
	"context"
	"sync"
	"time"
)

// compile-time interface check
var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

// MemoryCache is a process-local Cache for single-instance deployments.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the cache clock. Used by tests.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Reserve implements Cache.
func (c *MemoryCache) Reserve(_ context.Context, key string, rec Record, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	c.entries[key] = memoryEntry{rec: rec, expiresAt: now.Add(ttl)}
	return true, nil
}

// Mark implements Cache.
func (c *MemoryCache) Mark(_ context.Context, key string, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.rec = rec
		c.entries[key] = e
	}
	return nil
}

// Release implements Cache.
func (c *MemoryCache) Release(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Sweep implements Cache.
func (c *MemoryCache) Sweep(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len implements Cache.
func (c *MemoryCache) Len(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}

// Get returns the record under key if it has not expired.
func (c *MemoryCache) Get(key string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return Record{}, false
	}
	return e.rec, true
}
