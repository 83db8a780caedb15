// Package sharedlock implements a reader/writer lock on a single key per
// spec.md §4.9, composing one lock.Adapter-shaped writer record with one
// semaphore.Adapter-shaped reader pool against that same key. It introduces
// no new storage primitive: it is a thin orchestration layer over lock and
// semaphore, serializing the two checks ("is any reader held" before
// granting a writer, "is the writer held" before granting a reader) with a
// single internal.KeyedMutex per key, the same local-serialization idiom
// dsync/lock.Locker.Do uses for its own acquisition path.
package sharedlock

import (
	"context"

	"github.com/nodecore/resync/event"
	"github.com/nodecore/resync/internal"
	"github.com/nodecore/resync/lock"
	"github.com/nodecore/resync/namespace"
	"github.com/nodecore/resync/semaphore"
	"github.com/nodecore/resync/timespan"
)

// Provider builds SharedLock handles over a shared key, backed by a
// lock.Provider for the writer slot and a semaphore.Provider (limit =
// maxReaders) for the reader pool.
type Provider struct {
	writers *lock.Provider
	readers *semaphore.Provider
	mu      *internal.KeyedMutex
	bus     *event.Bus[Event]
}

type ProviderOption func(*Provider)

func WithEventBus(bus *event.Bus[Event]) ProviderOption {
	return func(p *Provider) { p.bus = bus }
}

// NewProvider builds a Provider whose reader pool admits up to maxReaders
// concurrent holders per key.
func NewProvider(writerAdapter lock.Adapter, readerAdapter semaphore.Adapter, maxReaders int, ttl timespan.Duration, opts ...ProviderOption) *Provider {
	ns := namespace.New("sharedlock")
	p := &Provider{
		writers: lock.NewProvider(writerAdapter, lock.WithNamespace(ns), lock.WithDefaultTTL(ttl)),
		readers: semaphore.NewProvider(readerAdapter, maxReaders, semaphore.WithNamespace(ns), semaphore.WithDefaultTTL(ttl)),
		mu:      internal.NewKeyedMutex(),
		bus:     event.NewBus[Event](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Events(buffer int) (<-chan Event, func()) {
	return p.bus.Subscribe(buffer)
}

// New creates a lazy SharedLock handle for key.
func (p *Provider) New(key string) *SharedLock {
	return &SharedLock{
		provider: p,
		key:      key,
		writer:   p.writers.New(key),
		reader:   p.readers.New(key),
	}
}

// SharedLock is the handle returned by Provider.New, implementing the
// reader/writer state machine of spec.md §4.9 over one key.
type SharedLock struct {
	provider *Provider
	key      string
	writer   *lock.Lock
	reader   *semaphore.Semaphore
}

func (s *SharedLock) emit(kind Kind, err error) {
	s.provider.bus.Publish(Event{Kind: kind, Key: s.key, Err: err})
}

// AcquireWriter succeeds iff no writer currently holds the key and no live
// reader slot exists.
func (s *SharedLock) AcquireWriter(ctx context.Context) (bool, error) {
	lk := s.provider.mu.Key(s.key)
	lk.Lock()
	defer lk.Unlock()

	readers, err := s.reader.AcquiredSlots(ctx)
	if err != nil {
		s.emit(UnexpectedErr, err)
		return false, err
	}
	if readers > 0 {
		s.emit(UnavailableReaderHeld, nil)
		return false, nil
	}

	ok, err := s.writer.Acquire(ctx)
	if err != nil {
		s.emit(UnexpectedErr, err)
		return false, err
	}
	if !ok {
		s.emit(UnavailableWriterHeld, nil)
		return false, nil
	}
	s.emit(WriterAcquired, nil)
	return true, nil
}

// ReleaseWriter releases this handle's writer hold, if any.
func (s *SharedLock) ReleaseWriter(ctx context.Context) (bool, error) {
	ok, err := s.writer.Release(ctx)
	if err != nil {
		s.emit(UnexpectedErr, err)
		return false, err
	}
	if ok {
		s.emit(WriterReleased, nil)
	}
	return ok, nil
}

// AcquireReader succeeds iff no writer currently holds the key and the
// reader pool has not reached its limit.
func (s *SharedLock) AcquireReader(ctx context.Context) (bool, error) {
	lk := s.provider.mu.Key(s.key)
	lk.Lock()
	defer lk.Unlock()

	held, err := s.writer.IsLocked(ctx)
	if err != nil {
		s.emit(UnexpectedErr, err)
		return false, err
	}
	if held {
		s.emit(UnavailableWriterHeld, nil)
		return false, nil
	}

	ok, err := s.reader.Acquire(ctx)
	if err != nil {
		s.emit(UnexpectedErr, err)
		return false, err
	}
	if !ok {
		s.emit(UnavailableLimitReached, nil)
		return false, nil
	}
	s.emit(ReaderAcquired, nil)
	return true, nil
}

// ReleaseReader releases this handle's reader slot, if any.
func (s *SharedLock) ReleaseReader(ctx context.Context) (bool, error) {
	ok, err := s.reader.Release(ctx)
	if err != nil {
		s.emit(UnexpectedErr, err)
		return false, err
	}
	if ok {
		s.emit(ReaderReleased, nil)
	}
	return ok, nil
}

// ForceRelease clears both the writer hold and every reader slot for this
// key.
func (s *SharedLock) ForceRelease(ctx context.Context) error {
	lk := s.provider.mu.Key(s.key)
	lk.Lock()
	defer lk.Unlock()

	if _, err := s.writer.ForceRelease(ctx); err != nil {
		s.emit(UnexpectedErr, err)
		return err
	}
	if _, err := s.reader.ForceReleaseAll(ctx); err != nil {
		s.emit(UnexpectedErr, err)
		return err
	}
	s.emit(ForceReleased, nil)
	return nil
}
