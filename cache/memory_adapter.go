package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nodecore/resync/internal"
	"github.com/nodecore/resync/timespan"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time // zero means never expires
}

func (e entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryAdapter is a process-local Adapter[T] backed by a sync.Map guarded
// per-key by an internal.KeyedMutex, the required baseline implementation
// per spec.md §4.10, grounded on dsync/cache.Cache generalized from []byte
// values to a type parameter T.
type MemoryAdapter[T any] struct {
	mu      *internal.KeyedMutex
	entries sync.Map // key string -> entry[T]
	now     func() time.Time
}

func NewMemoryAdapter[T any]() *MemoryAdapter[T] {
	return &MemoryAdapter[T]{mu: internal.NewKeyedMutex(), now: time.Now}
}

var _ Adapter[int] = (*MemoryAdapter[int])(nil)

func (a *MemoryAdapter[T]) Get(_ context.Context, key string) (T, bool, error) {
	var zero T
	v, ok := a.entries.Load(key)
	if !ok {
		return zero, false, nil
	}
	e := v.(entry[T])
	if e.expired(a.now()) {
		return zero, false, nil
	}
	return e.value, true, nil
}

func (a *MemoryAdapter[T]) GetAndRemove(_ context.Context, key string) (T, bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	var zero T
	v, ok := a.entries.Load(key)
	if !ok {
		return zero, false, nil
	}
	e := v.(entry[T])
	if e.expired(a.now()) {
		return zero, false, nil
	}
	a.entries.Delete(key)
	return e.value, true, nil
}

func (a *MemoryAdapter[T]) Add(_ context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	if v, ok := a.entries.Load(key); ok {
		if !v.(entry[T]).expired(now) {
			return false, nil
		}
	}
	a.entries.Store(key, entry[T]{value: value, expiresAt: expiryAt(now, ttl)})
	return true, nil
}

func (a *MemoryAdapter[T]) Put(_ context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	replaced := false
	if v, ok := a.entries.Load(key); ok {
		replaced = !v.(entry[T]).expired(now)
	}
	a.entries.Store(key, entry[T]{value: value, expiresAt: expiryAt(now, ttl)})
	return replaced, nil
}

func (a *MemoryAdapter[T]) Update(_ context.Context, key string, value T) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	v, ok := a.entries.Load(key)
	if !ok {
		return false, nil
	}
	e := v.(entry[T])
	if e.expired(now) {
		return false, nil
	}
	e.value = value
	a.entries.Store(key, e)
	return true, nil
}

func (a *MemoryAdapter[T]) Increment(_ context.Context, key string, delta int64) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	v, ok := a.entries.Load(key)
	if !ok {
		return false, nil
	}
	e := v.(entry[T])
	if e.expired(now) {
		return false, nil
	}

	next, err := incrementValue(e.value, delta)
	if err != nil {
		return false, err
	}
	e.value = next
	a.entries.Store(key, e)
	return true, nil
}

func (a *MemoryAdapter[T]) RemoveMany(_ context.Context, keys ...string) (bool, error) {
	now := a.now()
	removedLive := false
	for _, key := range keys {
		lk := a.mu.Key(key)
		lk.Lock()
		if v, ok := a.entries.Load(key); ok {
			if !v.(entry[T]).expired(now) {
				removedLive = true
			}
			a.entries.Delete(key)
		}
		lk.Unlock()
	}
	return removedLive, nil
}

func (a *MemoryAdapter[T]) RemoveAll(_ context.Context) error {
	a.entries.Range(func(key, _ any) bool {
		a.entries.Delete(key)
		return true
	})
	return nil
}

func (a *MemoryAdapter[T]) RemoveByKeyPrefix(_ context.Context, prefix string) error {
	a.entries.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			a.entries.Delete(key)
		}
		return true
	})
	return nil
}

func expiryAt(now time.Time, ttl timespan.Duration) time.Time {
	if ttl.IsZero() {
		return time.Time{}
	}
	return now.Add(ttl.Std())
}

// incrementValue applies delta to v's underlying numeric kind, returning
// ErrNotNumeric for any other type.
func incrementValue[T any](v T, delta int64) (T, error) {
	switch cur := any(v).(type) {
	case int:
		return any(cur + int(delta)).(T), nil
	case int32:
		return any(cur + int32(delta)).(T), nil
	case int64:
		return any(cur + delta).(T), nil
	case float32:
		return any(cur + float32(delta)).(T), nil
	case float64:
		return any(cur + float64(delta)).(T), nil
	default:
		var zero T
		return zero, ErrNotNumeric
	}
}
