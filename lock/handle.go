package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nodecore/resync/timespan"
)

const (
	defaultTTL          = 30 * time.Second
	defaultRefreshRatio = 0.8
	defaultWait         = time.Minute
	defaultInterval     = time.Second
)

// BlockingSettings configures acquireBlocking per spec.md §4.7.3: acquire is
// retried every Interval until it succeeds or Time has elapsed in total.
type BlockingSettings struct {
	Time     time.Duration
	Interval time.Duration
}

func NewBlockingSettings() *BlockingSettings {
	return &BlockingSettings{Time: defaultWait, Interval: defaultInterval}
}

// Handle is the serializable identity of a Lock: {key, lockId, ttl}, letting
// a runOrFail on one node be matched by a release issued from the
// deserialized handle on another, per spec.md §4.7.3. NamespaceRoot records
// which namespace produced it; FromHandle does not check it against the
// Provider's own namespace.
type Handle struct {
	Key           string
	LockID        string
	TTL           timespan.Duration
	NamespaceRoot string
}

// Lock is the lazy handle returned by Provider.New/FromHandle: its
// operations are deferred until awaited, following spec.md §4.7.3.
type Lock struct {
	provider     *Provider
	key          string
	lockID       string
	ttl          timespan.Duration
	refreshRatio float64
}

type Option func(*Lock)

func WithTTL(ttl timespan.Duration) Option {
	return func(l *Lock) { l.ttl = ttl }
}

func WithLockID(id string) Option {
	return func(l *Lock) { l.lockID = id }
}

// WithRefreshRatio controls RunBlocking/Run's background lease renewal: the
// lock is refreshed every ttl*ratio while fn is still running. A ratio <= 0
// disables refresh, in which case the run is bounded by ttl outright,
// matching dsync/lock.Do's noRefresh branch.
func WithRefreshRatio(ratio float64) Option {
	return func(l *Lock) { l.refreshRatio = ratio }
}

// Handle returns this Lock's serializable identity.
func (l *Lock) Handle() Handle {
	return Handle{Key: l.key, LockID: l.lockID, TTL: l.ttl, NamespaceRoot: l.provider.ns.Root()}
}

func (l *Lock) physicalKey() (string, error) {
	k, err := l.provider.ns.Create(l.key)
	if err != nil {
		return "", err
	}
	return k.Namespaced, nil
}

func (l *Lock) emit(kind Kind, err error) {
	l.provider.bus.Publish(Event{Kind: kind, Key: l.key, Owner: l.lockID, Err: err})
}

// Acquire attempts to take the lock once, reporting false (no error) if
// another owner currently holds it.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	pk, err := l.physicalKey()
	if err != nil {
		return false, err
	}

	ok, err := l.provider.adapter.Acquire(ctx, pk, l.lockID, l.ttl)
	if err != nil {
		l.emit(UnexpectedErr, err)
		return false, err
	}
	if !ok {
		l.emit(NotAvailable, nil)
		return false, nil
	}
	l.emit(Acquired, nil)
	return true, nil
}

// AcquireOrFail is Acquire but returns ErrLocked instead of (false, nil).
func (l *Lock) AcquireOrFail(ctx context.Context) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// AcquireBlocking retries Acquire every settings.Interval until it succeeds
// or settings.Time has elapsed, per spec.md §4.7.3's blocking acquisition
// rule.
func (l *Lock) AcquireBlocking(ctx context.Context, settings *BlockingSettings) (bool, error) {
	if settings == nil {
		settings = NewBlockingSettings()
	}

	deadline := time.After(settings.Time)
	ticker := time.NewTicker(settings.Interval)
	defer ticker.Stop()

	ok, err := l.Acquire(ctx)
	if err != nil || ok {
		return ok, err
	}

	for {
		select {
		case <-ctx.Done():
			return false, context.Cause(ctx)
		case <-deadline:
			return l.Acquire(ctx)
		case <-ticker.C:
			ok, err := l.Acquire(ctx)
			if err != nil || ok {
				return ok, err
			}
		}
	}
}

func (l *Lock) AcquireBlockingOrFail(ctx context.Context, settings *BlockingSettings) error {
	ok, err := l.AcquireBlocking(ctx, settings)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockWaitTimeout
	}
	return nil
}

// Release frees the lock iff this handle is the current owner.
func (l *Lock) Release(ctx context.Context) (bool, error) {
	pk, err := l.physicalKey()
	if err != nil {
		return false, err
	}

	ok, err := l.provider.adapter.Release(ctx, pk, l.lockID)
	if err != nil {
		l.emit(UnexpectedErr, err)
		return false, err
	}
	if !ok {
		l.emit(FailedRelease, nil)
		return false, nil
	}
	l.emit(Released, nil)
	return true, nil
}

func (l *Lock) ReleaseOrFail(ctx context.Context) error {
	ok, err := l.Release(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOwner
	}
	return nil
}

// ForceRelease deletes the lock's entry regardless of current owner.
func (l *Lock) ForceRelease(ctx context.Context) (bool, error) {
	pk, err := l.physicalKey()
	if err != nil {
		return false, err
	}

	ok, err := l.provider.adapter.ForceRelease(ctx, pk)
	if err != nil {
		l.emit(UnexpectedErr, err)
		return false, err
	}
	l.emit(ForceReleased, nil)
	return ok, nil
}

// Refresh extends the lock's ttl. With no ttl argument, the handle's
// configured ttl is reused.
func (l *Lock) Refresh(ctx context.Context, ttl ...timespan.Duration) (bool, error) {
	renew := l.ttl
	if len(ttl) > 0 {
		renew = ttl[0]
	}

	pk, err := l.physicalKey()
	if err != nil {
		return false, err
	}

	ok, err := l.provider.adapter.Refresh(ctx, pk, l.lockID, renew)
	if err != nil {
		l.emit(UnexpectedErr, err)
		return false, err
	}
	if !ok {
		l.emit(FailedRefresh, nil)
		return false, nil
	}
	l.emit(Refreshed, nil)
	return true, nil
}

func (l *Lock) RefreshOrFail(ctx context.Context, ttl ...timespan.Duration) error {
	ok, err := l.Refresh(ctx, ttl...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOwner
	}
	return nil
}

// IsExpired reports whether the lock's entry has no live holder.
func (l *Lock) IsExpired(ctx context.Context) (bool, error) {
	locked, err := l.IsLocked(ctx)
	return !locked, err
}

// IsLocked reports whether any live holder currently exists for this key.
func (l *Lock) IsLocked(ctx context.Context) (bool, error) {
	pk, err := l.physicalKey()
	if err != nil {
		return false, err
	}
	_, _, ok, err := l.provider.adapter.Find(ctx, pk)
	return ok, err
}

// GetRemainingTime returns the remaining ttl, or nil if the key has no live
// entry or never expires.
func (l *Lock) GetRemainingTime(ctx context.Context) (*timespan.Duration, error) {
	pk, err := l.physicalKey()
	if err != nil {
		return nil, err
	}
	_, remaining, ok, err := l.provider.adapter.Find(ctx, pk)
	if err != nil || !ok || remaining.IsZero() {
		return nil, err
	}
	return &remaining, nil
}

// Run acquires the lock, invokes fn, and releases on every exit path.
// ErrLocked is returned if the lock is currently held elsewhere.
func (l *Lock) Run(ctx context.Context, fn func(context.Context) error) error {
	return l.run(ctx, fn, func(ctx context.Context) (bool, error) { return l.Acquire(ctx) })
}

// RunOrFail is an alias for Run: acquire failure already surfaces as
// ErrLocked, matching spec.md's runOrFail naming for symmetry with
// Acquire/AcquireOrFail.
func (l *Lock) RunOrFail(ctx context.Context, fn func(context.Context) error) error {
	return l.Run(ctx, fn)
}

// RunBlocking retries acquisition per settings before invoking fn, per
// spec.md §4.7.3.
func (l *Lock) RunBlocking(ctx context.Context, fn func(context.Context) error, settings *BlockingSettings) error {
	return l.run(ctx, fn, func(ctx context.Context) (bool, error) {
		return l.AcquireBlocking(ctx, settings)
	})
}

func (l *Lock) RunBlockingOrFail(ctx context.Context, fn func(context.Context) error, settings *BlockingSettings) error {
	return l.RunBlocking(ctx, fn, settings)
}

// run is grounded on dsync/lock.Locker.Do: it brackets acquire/fn/release,
// bounding fn's context by ttl when refresh is disabled, or by a background
// refresh ticker (ttl * refreshRatio) otherwise, so a long-running fn keeps
// its lease alive without the caller managing TTLs by hand.
func (l *Lock) run(ctx context.Context, fn func(context.Context) error, acquire func(context.Context) (bool, error)) error {
	ok, err := acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	defer func() {
		if _, err := l.Release(context.WithoutCancel(ctx)); err != nil {
			l.emit(UnexpectedErr, fmt.Errorf("release during run: %w", err))
		}
	}()

	noRefresh := l.refreshRatio <= 0 || l.ttl.IsZero()

	var cancel context.CancelFunc
	if noRefresh {
		if !l.ttl.IsZero() {
			ctx, cancel = context.WithTimeoutCause(ctx, l.ttl.Std(), errLockRunTimeout)
		}
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	if cancel != nil {
		defer cancel()
	}

	if noRefresh {
		return fn(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	ticker := time.NewTicker(time.Duration(float64(l.ttl.Std()) * l.refreshRatio))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-done:
			return err
		case <-ticker.C:
			if ok, err := l.Refresh(ctx); err != nil {
				return err
			} else if !ok {
				return ErrNotOwner
			}
		}
	}
}

var errLockRunTimeout = errors.New("lock: run exceeded lock ttl")
