package lock

import (
	"context"
	"sync"
	"time"

	"github.com/nodecore/resync/internal"
	"github.com/nodecore/resync/timespan"
)

type memoryEntry struct {
	owner     string
	expiresAt time.Time // zero means never expires
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryAdapter is a process-local Adapter backed by a map guarded per-key by
// a internal.KeyedMutex, the baseline implementation every lock.Provider can
// run against without external infrastructure.
type MemoryAdapter struct {
	mu      *internal.KeyedMutex
	entries sync.Map // key string -> memoryEntry
	now     func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{mu: internal.NewKeyedMutex(), now: time.Now}
}

var _ Adapter = (*MemoryAdapter)(nil)

func (a *MemoryAdapter) Acquire(_ context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	if v, ok := a.entries.Load(key); ok {
		e := v.(memoryEntry)
		if !e.expired(now) {
			return false, nil
		}
	}

	a.entries.Store(key, memoryEntry{owner: owner, expiresAt: expiryAt(now, ttl)})
	return true, nil
}

func (a *MemoryAdapter) Release(_ context.Context, key, owner string) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	v, ok := a.entries.Load(key)
	if !ok {
		return false, nil
	}
	e := v.(memoryEntry)
	if e.expired(a.now()) || e.owner != owner {
		return false, nil
	}

	a.entries.Delete(key)
	return true, nil
}

func (a *MemoryAdapter) ForceRelease(_ context.Context, key string) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	_, ok := a.entries.LoadAndDelete(key)
	return ok, nil
}

func (a *MemoryAdapter) Refresh(_ context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	v, ok := a.entries.Load(key)
	if !ok {
		return false, nil
	}
	e := v.(memoryEntry)
	if e.expired(now) || e.owner != owner {
		return false, nil
	}

	a.entries.Store(key, memoryEntry{owner: owner, expiresAt: expiryAt(now, ttl)})
	return true, nil
}

func (a *MemoryAdapter) Find(_ context.Context, key string) (string, timespan.Duration, bool, error) {
	v, ok := a.entries.Load(key)
	if !ok {
		return "", 0, false, nil
	}
	e := v.(memoryEntry)
	now := a.now()
	if e.expired(now) {
		return "", 0, false, nil
	}
	if e.expiresAt.IsZero() {
		return e.owner, 0, true, nil
	}
	return e.owner, timespan.Of(e.expiresAt.Sub(now)), true, nil
}

func expiryAt(now time.Time, ttl timespan.Duration) time.Time {
	if ttl.IsZero() {
		return time.Time{}
	}
	return now.Add(ttl.Std())
}
