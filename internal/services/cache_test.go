package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadCache(t *testing.T) {
	cache := NewReadCache(time.Minute).(*readCache)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set(CacheKeyPools+"all", 1)
	cache.Set(CacheKeyPoolDetail+"a", 2)
	cache.Set(CacheKeyPoolDetail+"b", 3)
	cache.Set(CacheKeyMembers+"a", 4)

	v, ok := cache.Get(CacheKeyPools + "all")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	InvalidatePool(cache, "a")
	_, ok = cache.Get(CacheKeyPools + "all")
	assert.False(t, ok)
	_, ok = cache.Get(CacheKeyPoolDetail + "a")
	assert.False(t, ok)
	_, ok = cache.Get(CacheKeyMembers + "a")
	assert.False(t, ok)
	_, ok = cache.Get(CacheKeyPoolDetail + "b")
	assert.True(t, ok, "other pools stay cached")

	t.Run("expiry", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, ok := cache.Get(CacheKeyPoolDetail + "b")
		assert.False(t, ok)
	})

	t.Run("invalidate everything", func(t *testing.T) {
		cache.Set("x", 1)
		cache.Invalidate()
		_, ok := cache.Get("x")
		assert.False(t, ok)
	})

	t.Run("nil cache", func(t *testing.T) {
		assert.NotPanics(t, func() { InvalidatePool(nil, "a") })
	})
}
