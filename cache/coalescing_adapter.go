package cache

import (
	"context"

	"github.com/nodecore/resync/task"
	"github.com/nodecore/resync/timespan"
)

// coalescingResult is what Get coalesces on: both the returned value and
// whether it was found, since a bare T can't distinguish a cache miss from
// a zero value.
type coalescingResult[T any] struct {
	value T
	ok    bool
}

// CoalescingAdapter wraps an Adapter[T], deduping concurrent Get calls for
// the same key into a single underlying round trip via a task.Group, the
// singleflight idiom generalized from the teacher's sync/promise.Promise
// into this module's task.Task.
type CoalescingAdapter[T any] struct {
	next  Adapter[T]
	group *task.Group[coalescingResult[T]]
}

func NewCoalescingAdapter[T any](next Adapter[T]) *CoalescingAdapter[T] {
	return &CoalescingAdapter[T]{next: next, group: task.NewGroup[coalescingResult[T]]()}
}

var _ Adapter[int] = (*CoalescingAdapter[int])(nil)

func (a *CoalescingAdapter[T]) Get(ctx context.Context, key string) (T, bool, error) {
	r, err := a.group.Lock(ctx, key, func(ctx context.Context) (coalescingResult[T], error) {
		v, ok, err := a.next.Get(ctx, key)
		return coalescingResult[T]{value: v, ok: ok}, err
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return r.value, r.ok, nil
}

func (a *CoalescingAdapter[T]) GetAndRemove(ctx context.Context, key string) (T, bool, error) {
	return a.next.GetAndRemove(ctx, key)
}

func (a *CoalescingAdapter[T]) Add(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	return a.next.Add(ctx, key, value, ttl)
}

func (a *CoalescingAdapter[T]) Put(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	return a.next.Put(ctx, key, value, ttl)
}

func (a *CoalescingAdapter[T]) Update(ctx context.Context, key string, value T) (bool, error) {
	return a.next.Update(ctx, key, value)
}

func (a *CoalescingAdapter[T]) Increment(ctx context.Context, key string, delta int64) (bool, error) {
	return a.next.Increment(ctx, key, delta)
}

func (a *CoalescingAdapter[T]) RemoveMany(ctx context.Context, keys ...string) (bool, error) {
	return a.next.RemoveMany(ctx, keys...)
}

func (a *CoalescingAdapter[T]) RemoveAll(ctx context.Context) error {
	return a.next.RemoveAll(ctx)
}

func (a *CoalescingAdapter[T]) RemoveByKeyPrefix(ctx context.Context, prefix string) error {
	return a.next.RemoveByKeyPrefix(ctx, prefix)
}
