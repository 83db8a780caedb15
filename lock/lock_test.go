package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/lock"
	"github.com/nodecore/resync/timespan"
)

// TestScenario_S5 covers spec scenario S5: owner A acquires "k" for 1
// minute, owner B's acquire fails, A releases, then B's acquire succeeds.
func TestScenario_S5(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())

	a := provider.New("k", lock.WithLockID("owner-a"), lock.WithTTL(timespan.Of(time.Minute)))
	b := provider.New("k", lock.WithLockID("owner-b"), lock.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Release(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestProperty_LockExclusivity covers testable property 3: for any number
// of concurrent distinct owners racing acquire against the same key, at
// most one succeeds.
func TestProperty_LockExclusivity(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())

	const owners = 50
	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex

	ctx := context.Background()
	for i := 0; i < owners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := provider.New("shared", lock.WithLockID(string(rune('a'+i))), lock.WithTTL(timespan.Of(time.Minute)))
			ok, err := l.Acquire(ctx)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
}

func TestLock_RunReleasesOnSuccess(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())
	l := provider.New("job", lock.WithTTL(timespan.Of(time.Minute)), lock.WithRefreshRatio(0))

	ctx := context.Background()
	ran := false
	err := l.Run(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	locked, err := l.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLock_RunReturnsErrLockedWhenHeld(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())
	holder := provider.New("busy", lock.WithTTL(timespan.Of(time.Minute)))
	contender := provider.New("busy", lock.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = contender.Run(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, lock.ErrLocked)
}

func TestLock_AcquireBlockingSucceedsOnceReleased(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())
	holder := provider.New("contended", lock.WithTTL(timespan.Of(50*time.Millisecond)))
	waiter := provider.New("contended", lock.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = holder.Release(context.Background())
	}()

	ok, err = waiter.AcquireBlocking(ctx, &lock.BlockingSettings{Time: time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_RefreshFailsForNonOwner(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())
	a := provider.New("k", lock.WithLockID("a"), lock.WithTTL(timespan.Of(time.Minute)))
	b := provider.New("k", lock.WithLockID("b"), lock.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()
	_, err := a.Acquire(ctx)
	require.NoError(t, err)

	ok, err := b.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLock_ForceReleaseIgnoresOwner(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())
	a := provider.New("k", lock.WithLockID("a"), lock.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()
	_, err := a.Acquire(ctx)
	require.NoError(t, err)

	ok, err := a.ForceRelease(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	locked, err := a.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLock_EventsPublished(t *testing.T) {
	provider := lock.NewProvider(lock.NewMemoryAdapter())
	events, unsubscribe := provider.Events(8)
	defer unsubscribe()

	l := provider.New("k", lock.WithTTL(timespan.Of(time.Minute)))
	ctx := context.Background()
	_, err := l.Acquire(ctx)
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, lock.Acquired, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ACQUIRED event")
	}
}
