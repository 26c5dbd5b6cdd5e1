// Package cache provides a TTL-bounded in-memory cache for upstream API
// responses. Entries are addressed by "<item>:<owner>/<repo>" keys.
package cache

import (
	"sync"
	"time"
)

// Memory is a small concurrency-safe TTL cache. Expired entries are dropped
// lazily on read and swept opportunistically on write.
type Memory struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewMemory builds a cache with the given TTL. ttl <= 0 disables caching
// entirely: Get never hits and Set is a no-op.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:        ttl,
		maxEntries: 1000,
		entries:    make(map[string]entry),
	}
}

// Get retrieves a live entry.
func (c *Memory) Get(key string) (interface{}, bool) {
	if c.ttl <= 0 || key == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the cache TTL.
func (c *Memory) Set(key string, value interface{}) {
	if c.ttl <= 0 || key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.sweepLocked()
	}
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Clear empties the cache.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len reports the number of entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Memory) sweepLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	// Still full after sweeping: drop everything rather than grow without
	// bound. The cache is advisory.
	if len(c.entries) >= c.maxEntries {
		c.entries = make(map[string]entry)
	}
}
