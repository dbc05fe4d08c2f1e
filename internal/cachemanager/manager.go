// Package cachemanager holds long-lived values keyed by string, such as the
// single shared instance of each managed plugin type.
package cachemanager

import (
	"context"
	"time"
)

// NoExpiration keeps an entry until it is deleted or the cache is flushed.
const NoExpiration time.Duration = -1

// CacheManager stores values by key.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	// GetOrCreate returns the cached value for key, or builds it with create
	// and stores it. created reports whether create ran. Concurrent callers
	// for the same key observe a single call to create.
	GetOrCreate(ctx context.Context, key K, create func() (V, error)) (value V, created bool, err error)
	Delete(ctx context.Context, keys ...K) error
	Keys(ctx context.Context) []K
	Flush(ctx context.Context) error
}
