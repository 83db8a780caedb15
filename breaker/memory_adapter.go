package breaker

import (
	"context"
	"sync"

	"github.com/nodecore/resync/internal"
)

// MemoryAdapter is a process-local StorageAdapter backed by a map, guarded
// per-key so transactions on different keys never block each other.
// Generalizes sync/circuitbreaker's single-CircuitBreaker atomic fields into
// a map keyed by breaker name.
type MemoryAdapter[M any] struct {
	mu      *internal.KeyedMutex
	dataMu  sync.RWMutex
	records map[string]Record[M]
}

func NewMemoryAdapter[M any]() *MemoryAdapter[M] {
	return &MemoryAdapter[M]{
		mu:      internal.NewKeyedMutex(),
		records: make(map[string]Record[M]),
	}
}

func (a *MemoryAdapter[M]) Find(ctx context.Context, key string) (Record[M], bool, error) {
	a.dataMu.RLock()
	defer a.dataMu.RUnlock()

	r, ok := a.records[key]
	return r, ok, nil
}

func (a *MemoryAdapter[M]) Remove(ctx context.Context, key string) error {
	a.dataMu.Lock()
	defer a.dataMu.Unlock()

	delete(a.records, key)
	return nil
}

func (a *MemoryAdapter[M]) Transaction(ctx context.Context, key string, fn func(current Record[M], ok bool) (Record[M], error)) (Record[M], error) {
	lk := a.mu.Key(key)
	lk.Lock()
	defer lk.Unlock()

	a.dataMu.RLock()
	current, ok := a.records[key]
	a.dataMu.RUnlock()

	next, err := fn(current, ok)
	if err != nil {
		return Record[M]{}, err
	}

	a.dataMu.Lock()
	a.records[key] = next
	a.dataMu.Unlock()

	return next, nil
}
