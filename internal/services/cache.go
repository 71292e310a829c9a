package services

import (
	"strings"
	"sync"
	"time"
)

const (
	CacheKeyPools      = "pools:"
	CacheKeyWinners    = "winners:"
	CacheKeyClaimable  = "claimable:"
	CacheKeyPoolDetail = "pool:"
	CacheKeyMembers    = "participants:"
)

// ReadCache memoizes pool reads between mutations. Writers invalidate by key prefix.
type ReadCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Invalidate(prefixes ...string)
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

type readCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewReadCache(ttl time.Duration) ReadCache {
	return &readCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *readCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *readCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops every key starting with one of prefixes. No prefix clears the cache.
func (c *readCache) Invalidate(prefixes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(prefixes) == 0 {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for key := range c.entries {
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				delete(c.entries, key)
				break
			}
		}
	}
}

// InvalidatePool drops every cached read that includes the given pool.
func InvalidatePool(cache ReadCache, poolID string) {
	if cache == nil {
		return
	}
	cache.Invalidate(CacheKeyPools, CacheKeyClaimable, CacheKeyPoolDetail+poolID, CacheKeyWinners+poolID, CacheKeyMembers+poolID)
}
