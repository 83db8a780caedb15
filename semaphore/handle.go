package semaphore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nodecore/resync/timespan"
)

const (
	defaultTTL      = 30 * time.Second
	defaultWait     = time.Minute
	defaultInterval = time.Second
)

// ErrLimitReached is returned when acquire finds no free slot.
var ErrLimitReached = errors.New("semaphore: limit reached")

// ErrNotAcquired is returned by refresh/release when this handle's slotId
// does not currently hold a live slot.
var ErrNotAcquired = errors.New("semaphore: slot not held")

// ErrWaitTimeout is returned by acquireBlocking when the wait duration
// elapses without acquiring a slot.
var ErrWaitTimeout = errors.New("semaphore: exceeded wait duration acquiring slot")

// BlockingSettings configures acquireBlocking, analogous to lock.BlockingSettings.
type BlockingSettings struct {
	Time     time.Duration
	Interval time.Duration
}

func NewBlockingSettings() *BlockingSettings {
	return &BlockingSettings{Time: defaultWait, Interval: defaultInterval}
}

// Semaphore is the lazy handle returned by Provider.New, analogous to
// lock.Lock but for limit > 1 concurrent holders, per spec.md §4.8.2.
type Semaphore struct {
	provider *Provider
	key      string
	slotID   string
	limit    int
	ttl      timespan.Duration
}

type Option func(*Semaphore)

func WithTTL(ttl timespan.Duration) Option {
	return func(s *Semaphore) { s.ttl = ttl }
}

func WithSlotID(id string) Option {
	return func(s *Semaphore) { s.slotID = id }
}

func (s *Semaphore) physicalKey() (string, error) {
	k, err := s.provider.ns.Create(s.key)
	if err != nil {
		return "", err
	}
	return k.Namespaced, nil
}

func (s *Semaphore) emit(kind Kind, hasReleased bool, err error) {
	s.provider.bus.Publish(Event{Kind: kind, Key: s.key, SlotID: s.slotID, HasReleased: hasReleased, Err: err})
}

// Acquire claims one slot, reporting false (no error) if the limit has been
// reached.
func (s *Semaphore) Acquire(ctx context.Context) (bool, error) {
	pk, err := s.physicalKey()
	if err != nil {
		return false, err
	}

	ok, err := s.provider.adapter.InsertSlotIfLimitNotReached(ctx, pk, s.slotID, s.limit, s.ttl)
	if err != nil {
		s.emit(UnexpectedErr, false, err)
		return false, err
	}
	if !ok {
		s.emit(LimitReached, false, nil)
		return false, nil
	}
	s.emit(Acquired, false, nil)
	return true, nil
}

func (s *Semaphore) AcquireOrFail(ctx context.Context) error {
	ok, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLimitReached
	}
	return nil
}

// AcquireBlocking retries Acquire every settings.Interval until it succeeds
// or settings.Time elapses.
func (s *Semaphore) AcquireBlocking(ctx context.Context, settings *BlockingSettings) (bool, error) {
	if settings == nil {
		settings = NewBlockingSettings()
	}

	ok, err := s.Acquire(ctx)
	if err != nil || ok {
		return ok, err
	}

	deadline := time.After(settings.Time)
	ticker := time.NewTicker(settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, context.Cause(ctx)
		case <-deadline:
			return s.Acquire(ctx)
		case <-ticker.C:
			ok, err := s.Acquire(ctx)
			if err != nil || ok {
				return ok, err
			}
		}
	}
}

func (s *Semaphore) AcquireBlockingOrFail(ctx context.Context, settings *BlockingSettings) error {
	ok, err := s.AcquireBlocking(ctx, settings)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWaitTimeout
	}
	return nil
}

// Release removes this handle's slot.
func (s *Semaphore) Release(ctx context.Context) (bool, error) {
	pk, err := s.physicalKey()
	if err != nil {
		return false, err
	}

	ok, err := s.provider.adapter.RemoveSlot(ctx, pk, s.slotID)
	if err != nil {
		s.emit(UnexpectedErr, false, err)
		return false, err
	}
	if !ok {
		s.emit(FailedRelease, false, nil)
		return false, nil
	}
	s.emit(Released, false, nil)
	return true, nil
}

func (s *Semaphore) ReleaseOrFail(ctx context.Context) error {
	ok, err := s.Release(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	return nil
}

// ForceReleaseAll removes the entire semaphore (definition and every slot),
// reporting whether anything existed.
func (s *Semaphore) ForceReleaseAll(ctx context.Context) (bool, error) {
	pk, err := s.physicalKey()
	if err != nil {
		return false, err
	}

	_, ok, err := s.provider.adapter.FindLimit(ctx, pk)
	if err != nil {
		s.emit(UnexpectedErr, false, err)
		return false, err
	}
	if err := s.provider.adapter.RemoveSemaphore(ctx, pk); err != nil {
		s.emit(UnexpectedErr, false, err)
		return false, err
	}
	s.emit(AllForceReleased, ok, nil)
	return ok, nil
}

// Refresh extends this handle's slot ttl.
func (s *Semaphore) Refresh(ctx context.Context, ttl ...timespan.Duration) (bool, error) {
	renew := s.ttl
	if len(ttl) > 0 {
		renew = ttl[0]
	}

	pk, err := s.physicalKey()
	if err != nil {
		return false, err
	}

	ok, err := s.provider.adapter.UpdateSlotIfUnexpired(ctx, pk, s.slotID, renew)
	if err != nil {
		s.emit(UnexpectedErr, false, err)
		return false, err
	}
	if !ok {
		s.emit(FailedRefresh, false, nil)
		return false, nil
	}
	s.emit(Refreshed, false, nil)
	return true, nil
}

func (s *Semaphore) RefreshOrFail(ctx context.Context, ttl ...timespan.Duration) error {
	ok, err := s.Refresh(ctx, ttl...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	return nil
}

// AcquiredSlots reports the current count of live holders for this
// semaphore's key, used to observe testable property 4.
func (s *Semaphore) AcquiredSlots(ctx context.Context) (int, error) {
	pk, err := s.physicalKey()
	if err != nil {
		return 0, err
	}
	return s.provider.adapter.AcquiredSlots(ctx, pk)
}

// Run acquires a slot, invokes fn, and releases on every exit path.
func (s *Semaphore) Run(ctx context.Context, fn func(context.Context) error) error {
	ok, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLimitReached
	}
	defer func() {
		if _, err := s.Release(context.WithoutCancel(ctx)); err != nil {
			s.emit(UnexpectedErr, false, err)
		}
	}()
	return fn(ctx)
}

// RunBlocking retries acquisition per settings before invoking fn.
func (s *Semaphore) RunBlocking(ctx context.Context, fn func(context.Context) error, settings *BlockingSettings) error {
	ok, err := s.AcquireBlocking(ctx, settings)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWaitTimeout
	}
	defer func() {
		if _, err := s.Release(context.WithoutCancel(ctx)); err != nil {
			s.emit(UnexpectedErr, false, err)
		}
	}()
	return fn(ctx)
}

func newSlotID() string {
	return uuid.Must(uuid.NewV7()).String()
}
