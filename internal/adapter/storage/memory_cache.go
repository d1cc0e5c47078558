package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process resolver cache with a time-based expiry and
// a bounded entry count. Overflow evicts the oldest entry. Safe for
// concurrent use; readers may observe a just-evicted key and recompute.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
	entries    map[string]memoryCacheEntry
	order      []string // insertion order, oldest first
	now        func() time.Time
}

type memoryCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryCache(maxEntries int, defaultTTL time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 128
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		entries:    make(map[string]memoryCacheEntry),
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.remove(key)
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.remove(key)
	}
	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.entries[key] = memoryCacheEntry{payload: payload, expiresAt: c.now().Add(ttl)}
	c.order = append(c.order, key)
	return nil
}

// Len reports the current entry count.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove must be called with the lock held.
func (c *MemoryCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
