package semaphore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nodecore/resync/internal"
	"github.com/nodecore/resync/timespan"
)

// ErrExists is returned by InsertSemaphore when key already has a
// semaphore.
var ErrExists = errors.New("semaphore: key already has a semaphore")

type slot struct {
	expiresAt time.Time
}

func (s slot) expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && now.After(s.expiresAt)
}

type semaphoreState struct {
	limit int
	slots map[string]slot
}

// MemoryAdapter is a process-local Adapter: a sync.Map of key to
// semaphoreState (safe for concurrent access across distinct keys) whose
// per-key contents are in turn serialized by an internal.KeyedMutex, the
// required baseline implementation per spec.md §4.8.
type MemoryAdapter struct {
	mu    *internal.KeyedMutex
	state sync.Map // key string -> *semaphoreState
	now   func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{mu: internal.NewKeyedMutex(), now: time.Now}
}

var _ Adapter = (*MemoryAdapter)(nil)

func (a *MemoryAdapter) FindLimit(_ context.Context, key string) (int, bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	v, ok := a.state.Load(key)
	if !ok {
		return 0, false, nil
	}
	return v.(*semaphoreState).limit, true, nil
}

func (a *MemoryAdapter) InsertSemaphore(_ context.Context, key string, limit int) error {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	if _, ok := a.state.Load(key); ok {
		return ErrExists
	}
	a.state.Store(key, &semaphoreState{limit: limit, slots: make(map[string]slot)})
	return nil
}

func (a *MemoryAdapter) RemoveSemaphore(_ context.Context, key string) error {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	a.state.Delete(key)
	return nil
}

func (a *MemoryAdapter) InsertSlotIfLimitNotReached(_ context.Context, key, slotID string, limit int, ttl timespan.Duration) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	v, ok := a.state.Load(key)
	var s *semaphoreState
	if ok {
		s = v.(*semaphoreState)
	} else {
		s = &semaphoreState{limit: limit, slots: make(map[string]slot)}
		a.state.Store(key, s)
	}

	live := 0
	for id, sl := range s.slots {
		if sl.expired(now) {
			delete(s.slots, id)
			continue
		}
		live++
	}
	if live >= limit {
		return false, nil
	}

	s.slots[slotID] = slot{expiresAt: expiryAt(now, ttl)}
	return true, nil
}

func (a *MemoryAdapter) RemoveSlot(_ context.Context, key, slotID string) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	v, ok := a.state.Load(key)
	if !ok {
		return false, nil
	}
	s := v.(*semaphoreState)
	if _, ok := s.slots[slotID]; !ok {
		return false, nil
	}
	delete(s.slots, slotID)
	return true, nil
}

func (a *MemoryAdapter) UpdateSlotIfUnexpired(_ context.Context, key, slotID string, ttl timespan.Duration) (bool, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	now := a.now()
	v, ok := a.state.Load(key)
	if !ok {
		return false, nil
	}
	s := v.(*semaphoreState)
	sl, ok := s.slots[slotID]
	if !ok || sl.expired(now) {
		return false, nil
	}
	s.slots[slotID] = slot{expiresAt: expiryAt(now, ttl)}
	return true, nil
}

func (a *MemoryAdapter) AcquiredSlots(_ context.Context, key string) (int, error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	v, ok := a.state.Load(key)
	if !ok {
		return 0, nil
	}
	s := v.(*semaphoreState)

	now := a.now()
	count := 0
	for _, sl := range s.slots {
		if !sl.expired(now) {
			count++
		}
	}
	return count, nil
}

func expiryAt(now time.Time, ttl timespan.Duration) time.Time {
	if ttl.IsZero() {
		return time.Time{}
	}
	return now.Add(ttl.Std())
}
