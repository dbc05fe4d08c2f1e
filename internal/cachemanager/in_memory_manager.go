package cachemanager

import (
	"context"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/funproject/fun/internal/log"
)

// DefaultCleanupInterval is how often expired entries are purged.
const DefaultCleanupInterval = 30 * time.Minute

// InMemoryCacheManager is a go-cache backed CacheManager.
type InMemoryCacheManager[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache

	// createMu serialises GetOrCreate so a value is only built once per key.
	createMu sync.Mutex
}

// NewInMemoryCacheManager creates a cache labelled useCase in log output.
func NewInMemoryCacheManager[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get retrieves an item from the cache by its key.
func (c *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V

	value, found := c.cache.Get(string(key))
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)
		return zero, false
	}

	return v, true
}

// Set stores value under key for ttl. Use NoExpiration to keep it forever.
func (c *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	c.cache.Set(string(key), value, ttl)
}

// GetOrCreate returns the cached value or stores the result of create.
// Errors from create are returned and nothing is cached.
func (c *InMemoryCacheManager[K, V]) GetOrCreate(ctx context.Context, key K, create func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		log.Debug(log.CatCache, "cache hit", "cache", c.useCase, "key", key)
		return v, false, nil
	}

	c.createMu.Lock()
	defer c.createMu.Unlock()

	if v, ok := c.Get(ctx, key); ok {
		return v, false, nil
	}

	v, err := create()
	if err != nil {
		var zero V
		return zero, false, err
	}

	c.cache.Set(string(key), v, gocache.NoExpiration)
	log.Debug(log.CatCache, "cached new value", "cache", c.useCase, "key", key)

	return v, true, nil
}

// Delete removes keys from the cache.
func (c *InMemoryCacheManager[K, V]) Delete(_ context.Context, keys ...K) error {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
	return nil
}

// Keys returns the unexpired keys in sorted order.
func (c *InMemoryCacheManager[K, V]) Keys(_ context.Context) []K {
	items := c.cache.Items()
	keys := make([]K, 0, len(items))
	for k := range items {
		keys = append(keys, K(k))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Flush removes every entry.
func (c *InMemoryCacheManager[K, V]) Flush(_ context.Context) error {
	c.cache.Flush()
	return nil
}
