package cache

import (
	"context"
	"errors"

	"github.com/nodecore/resync/timespan"
)

// ErrUniqueViolation is the sentinel a DatabaseCacheAdapter.Insert
// implementation must be Is-compatible with when key already has a row,
// mirroring lock.ErrUniqueViolation.
var ErrUniqueViolation = errors.New("cache: row already exists")

// Row is one persisted cache entry as seen by a DatabaseCacheAdapter.
type Row[T any] struct {
	Key       string
	Value     T
	ExpiresAt timespan.Duration // remaining ttl at read time; zero when the row never expires or has already expired (see Expired)
	Expired   bool
}

// DatabaseCacheAdapter is the CRUD contract of spec.md §4.10.2.
type DatabaseCacheAdapter[T any] interface {
	Find(ctx context.Context, key string) (Row[T], bool, error)

	// Insert creates a fresh row. It must fail with ErrUniqueViolation if
	// key already has a row, live or expired.
	Insert(ctx context.Context, key string, value T, ttl timespan.Duration) error

	// Upsert always writes, reporting whether a live row previously
	// existed.
	Upsert(ctx context.Context, key string, value T, ttl timespan.Duration) (hadLive bool, err error)

	// UpdateExpired replaces an existing, currently-expired row. Reports
	// false (no error) if the row is missing or not expired.
	UpdateExpired(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error)

	// UpdateUnexpired writes value into an existing, live row, preserving
	// its ttl.
	UpdateUnexpired(ctx context.Context, key string, value T) (bool, error)

	// IncrementUnexpired adds delta to a live row's numeric value.
	IncrementUnexpired(ctx context.Context, key string, delta int64) (bool, error)

	// RemoveExpiredMany deletes keys whose rows are expired.
	RemoveExpiredMany(ctx context.Context, keys []string) (int, error)

	// RemoveUnexpiredMany deletes keys whose rows are live.
	RemoveUnexpiredMany(ctx context.Context, keys []string) (int, error)

	RemoveAll(ctx context.Context) error
	RemoveByKeyPrefix(ctx context.Context, prefix string) error
}

// DatabaseAdapter lifts a DatabaseCacheAdapter[T] into the Adapter[T]
// contract per spec.md §4.10.2's get/add/put/update/increment/removeMany
// mapping rules.
type DatabaseAdapter[T any] struct {
	db DatabaseCacheAdapter[T]
}

func NewDatabaseAdapter[T any](db DatabaseCacheAdapter[T]) *DatabaseAdapter[T] {
	return &DatabaseAdapter[T]{db: db}
}

var _ Adapter[int] = (*DatabaseAdapter[int])(nil)

func (a *DatabaseAdapter[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	row, ok, err := a.db.Find(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	if row.Expired {
		if _, err := a.db.RemoveExpiredMany(ctx, []string{key}); err != nil {
			return zero, false, err
		}
		return zero, false, nil
	}
	return row.Value, true, nil
}

func (a *DatabaseAdapter[T]) GetAndRemove(ctx context.Context, key string) (T, bool, error) {
	v, ok, err := a.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	if _, err := a.db.RemoveUnexpiredMany(ctx, []string{key}); err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

func (a *DatabaseAdapter[T]) Add(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	err := a.db.Insert(ctx, key, value, ttl)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrUniqueViolation) {
		return false, err
	}
	return a.db.UpdateExpired(ctx, key, value, ttl)
}

func (a *DatabaseAdapter[T]) Put(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	return a.db.Upsert(ctx, key, value, ttl)
}

func (a *DatabaseAdapter[T]) Update(ctx context.Context, key string, value T) (bool, error) {
	return a.db.UpdateUnexpired(ctx, key, value)
}

func (a *DatabaseAdapter[T]) Increment(ctx context.Context, key string, delta int64) (bool, error) {
	return a.db.IncrementUnexpired(ctx, key, delta)
}

func (a *DatabaseAdapter[T]) RemoveMany(ctx context.Context, keys ...string) (bool, error) {
	unexpired, err := a.db.RemoveUnexpiredMany(ctx, keys)
	if err != nil {
		return false, err
	}
	if _, err := a.db.RemoveExpiredMany(ctx, keys); err != nil {
		return false, err
	}
	return unexpired > 0, nil
}

func (a *DatabaseAdapter[T]) RemoveAll(ctx context.Context) error {
	return a.db.RemoveAll(ctx)
}

func (a *DatabaseAdapter[T]) RemoveByKeyPrefix(ctx context.Context, prefix string) error {
	return a.db.RemoveByKeyPrefix(ctx, prefix)
}
