package appcontext

import (
	"sync"
	"time"
)

// memCache is the default ir.CacheStore: an in-process map with per-entry
// expiry, adequate for a single gateway instance. maxAgeSeconds of 0 means
// cache forever, matching the @cache directive's default.
type memCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]cacheEntry{}}
}

func (c *memCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *memCache) Set(key string, value any, maxAgeSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cacheEntry{value: value}
	if maxAgeSeconds > 0 {
		e.expiresAt = time.Now().Add(time.Duration(maxAgeSeconds) * time.Second)
	}
	c.entries[key] = e
}
