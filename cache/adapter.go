// Package cache implements the cache core of spec.md §4.10: a raw
// Adapter[T] contract with Memory/Redis/SQL implementations, generalizing
// dsync/cache.Cache's Redis SETNX/compare-and-swap scripts off a single
// hardcoded []byte value into the typed, TTL-aware IDatabaseCacheAdapter
// CRUD contract spec.md names.
package cache

import (
	"context"
	"errors"

	"github.com/nodecore/resync/timespan"
)

// ErrNotNumeric is returned by Increment when the stored value cannot be
// treated as a number.
var ErrNotNumeric = errors.New("cache: value is not numeric")

// Adapter is the ICacheAdapter<T> contract of spec.md §4.10.1.
type Adapter[T any] interface {
	// Get returns the live value for key, or ok=false if absent or
	// expired.
	Get(ctx context.Context, key string) (value T, ok bool, err error)

	// GetAndRemove atomically returns and deletes the live value for key.
	GetAndRemove(ctx context.Context, key string) (value T, ok bool, err error)

	// Add stores value under key with ttl iff no live entry exists.
	Add(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error)

	// Put always writes value under key with ttl, reporting whether it
	// replaced an existing live entry.
	Put(ctx context.Context, key string, value T, ttl timespan.Duration) (replaced bool, err error)

	// Update writes value under key iff a live entry exists, preserving
	// its ttl.
	Update(ctx context.Context, key string, value T) (bool, error)

	// Increment adds delta to the live entry's value, returning
	// ErrNotNumeric if the stored value cannot be incremented.
	Increment(ctx context.Context, key string, delta int64) (bool, error)

	// RemoveMany deletes every key with a live or expired entry, reporting
	// whether any live entry was removed.
	RemoveMany(ctx context.Context, keys ...string) (bool, error)

	// RemoveAll deletes every entry this adapter manages.
	RemoveAll(ctx context.Context) error

	// RemoveByKeyPrefix deletes every entry whose key starts with prefix.
	RemoveByKeyPrefix(ctx context.Context, prefix string) error
}
