package store

import (
	"context"
	"sync"
	"time"

	"racha-core/internal/domain/entity"
)

// MemoryCache is a process-local CacheStore. Expired entries are dropped on
// read and by Sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entity.CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*entity.CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*entity.CacheEntry, error) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if e.Expired(c.now(), c.ttl) {
		c.mu.Lock()
		if cur, ok := c.entries[fingerprint]; ok && cur == e {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return nil, nil
	}
	return e, nil
}

// Put stores entry; a later Put for the same fingerprint wins.
func (c *MemoryCache) Put(_ context.Context, entry *entity.CacheEntry) error {
	c.mu.Lock()
	c.entries[entry.Fingerprint] = entry
	c.mu.Unlock()
	return nil
}

// Sweep removes expired entries and reports how many were removed.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.Expired(now, c.ttl) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
