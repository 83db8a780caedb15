// Package task implements a deferred, cancellable unit of async work, plus
// a Group that coalesces concurrent callers per key (used by
// cache.CoalescingAdapter). It generalizes sync/promise.Promise
// from the teacher repository, swapping its ad hoc Result type for
// presult.Result so every package in this module shares one result shape.
package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nodecore/resync/presult"
)

var (
	ErrTimeout     = errors.New("task: timeout")
	ErrCanceled    = errors.New("task: canceled")
	ErrNilFunction = errors.New("task: nil function")
	ErrEmpty       = errors.New("task: empty set")
)

// Task is an eagerly-started, single-resolution unit of work: it begins
// running as soon as it is created and can be awaited any number of times.
type Task[T any] struct {
	wg       sync.WaitGroup
	once     sync.Once
	data     T
	err      error
	ctx      context.Context
	cancel   context.CancelFunc
	resolved atomic.Bool
}

func deferred[T any](ctx context.Context) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{ctx: ctx, cancel: cancel}
	t.wg.Add(1)
	return t
}

// New starts fn in a goroutine bound to ctx and returns a Task representing
// its eventual outcome.
func New[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	if fn == nil {
		t := deferred[T](ctx)
		t.reject(ErrNilFunction)
		return t
	}

	t := deferred[T](ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok {
					t.reject(err)
				} else {
					t.reject(errors.New("task: panic occurred"))
				}
			}
		}()

		select {
		case <-t.ctx.Done():
			t.reject(ErrCanceled)
			return
		default:
		}

		data, err := fn(t.ctx)
		t.once.Do(func() {
			if err != nil {
				t.err = err
			} else {
				t.data = data
			}
			t.resolved.Store(true)
			t.wg.Done()
		})
	}()

	return t
}

func (t *Task[T]) reject(err error) {
	t.once.Do(func() {
		t.err = err
		t.resolved.Store(true)
		t.wg.Done()
	})
}

// Cancel aborts the task's context; a task that has not yet resolved
// resolves to ErrCanceled.
func (t *Task[T]) Cancel() {
	t.cancel()
	t.reject(ErrCanceled)
}

// Await blocks until the task resolves.
func (t *Task[T]) Await() (T, error) {
	t.wg.Wait()
	return t.data, t.err
}

// AwaitWithContext blocks until the task resolves or ctx is done, whichever
// comes first.
func (t *Task[T]) AwaitWithContext(ctx context.Context) (T, error) {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return t.data, t.err
	case <-ctx.Done():
		var zero T
		return zero, ErrTimeout
	}
}

// AwaitWithTimeout is AwaitWithContext against a fresh timeout context.
func (t *Task[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.AwaitWithContext(ctx)
}

func (t *Task[T]) IsPending() bool {
	return !t.resolved.Load()
}

func (t *Task[T]) IsResolved() bool {
	return t.resolved.Load() && t.err == nil
}

func (t *Task[T]) IsRejected() bool {
	return t.resolved.Load() && t.err != nil
}

// Set is a batch of Tasks of the same type, combined via All/Race/Any.
type Set[T any] []*Task[T]

func (s Set[T]) All() ([]T, error) {
	if len(s) == 0 {
		return []T{}, nil
	}

	res := make([]T, len(s))
	for i, t := range s {
		v, err := t.Await()
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func (s Set[T]) AllSettled() []presult.Result[T] {
	res := make([]presult.Result[T], len(s))
	for i, t := range s {
		v, err := t.Await()
		res[i] = presult.Result[T]{Data: v, Err: err}
	}
	return res
}

// Race returns the first task to resolve, successfully or not.
func (s Set[T]) Race(ctx context.Context) (T, error) {
	if len(s) == 0 {
		var zero T
		return zero, ErrEmpty
	}

	done := make(chan presult.Result[T], len(s))
	for _, t := range s {
		t := t
		go func() {
			v, err := t.AwaitWithContext(ctx)
			done <- presult.Result[T]{Data: v, Err: err}
		}()
	}

	select {
	case r := <-done:
		return r.Data, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ErrTimeout
	}
}

// Any returns the first successfully-resolved task's value, or every error
// joined if none succeed.
func (s Set[T]) Any(ctx context.Context) (T, error) {
	if len(s) == 0 {
		var zero T
		return zero, ErrEmpty
	}

	done := make(chan presult.Result[T], len(s))
	for _, t := range s {
		t := t
		go func() {
			v, err := t.AwaitWithContext(ctx)
			done <- presult.Result[T]{Data: v, Err: err}
		}()
	}

	var errs []error
	for range s {
		r := <-done
		if r.Err == nil {
			return r.Data, nil
		}
		errs = append(errs, r.Err)
	}

	var zero T
	return zero, errors.Join(errs...)
}
