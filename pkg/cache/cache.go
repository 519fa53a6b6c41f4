package cache

import (
	"sync"
	"time"
)

// Cache is a byte-value cache with per-entry TTL. Implementations must be
// safe for concurrent use. A zero TTL means no expiry.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache. It has no cross-process
// invalidation; multi-instance deployments should use the redis-backed
// implementation instead.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
