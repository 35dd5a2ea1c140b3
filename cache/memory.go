package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time // zero means no expiry
}

// MemoryCache is an in-process TTL cache. Expired entries are dropped lazily
// on read and swept opportunistically on write.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache constructs an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", ErrMiss
	}
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", ErrMiss
	}
	return entry.value, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Sweep a few expired entries while holding the lock anyway.
	swept := 0
	for k, e := range c.entries {
		if swept >= 16 {
			break
		}
		if !e.expires.IsZero() && c.now().After(e.expires) {
			delete(c.entries, k)
			swept++
		}
	}

	c.entries[key] = entry
	return nil
}

// Len reports the number of stored entries, including not-yet-swept expired ones.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
