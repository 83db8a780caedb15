package breaker

import "context"

// StorageAdapter generalizes sync/circuitbreaker's in-process atomics and
// dsync/circuitbreaker's Redis store into one contract: find, remove, and a
// transaction that loads-then-conditionally-stores one key atomically with
// respect to other transactions on that same key, per spec.md §4.6.2.
type StorageAdapter[M any] interface {
	Find(ctx context.Context, key string) (Record[M], bool, error)
	Remove(ctx context.Context, key string) error
	// Transaction loads the current record for key (ok is false if absent,
	// in which case fn receives the zero Record), calls fn, and atomically
	// stores fn's returned Record as the new value for key.
	Transaction(ctx context.Context, key string, fn func(current Record[M], ok bool) (Record[M], error)) (Record[M], error)
}
