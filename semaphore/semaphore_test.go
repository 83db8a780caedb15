package semaphore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/semaphore"
	"github.com/nodecore/resync/timespan"
)

// TestProperty_SemaphoreCap covers testable property 4: for limit L, the
// number of concurrently holding owners never exceeds L.
func TestProperty_SemaphoreCap(t *testing.T) {
	const limit = 3
	provider := semaphore.NewProvider(semaphore.NewMemoryAdapter(), limit)

	const contenders = 20
	var wg sync.WaitGroup
	var peak int64
	var current int64

	ctx := context.Background()
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := provider.New("pool", semaphore.WithTTL(timespan.Of(time.Minute)))
			ok, err := h.Acquire(ctx)
			require.NoError(t, err)
			if !ok {
				return
			}
			defer func() { _, _ = h.Release(ctx) }()

			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(atomic.LoadInt64(&peak)), limit)
}

func TestSemaphore_ReleaseFreesSlotForNextAcquire(t *testing.T) {
	provider := semaphore.NewProvider(semaphore.NewMemoryAdapter(), 1)

	a := provider.New("k", semaphore.WithTTL(timespan.Of(time.Minute)))
	b := provider.New("k", semaphore.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.Release(ctx)
	require.NoError(t, err)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSemaphore_ForceReleaseAllClearsEveryone(t *testing.T) {
	provider := semaphore.NewProvider(semaphore.NewMemoryAdapter(), 2)
	a := provider.New("k", semaphore.WithTTL(timespan.Of(time.Minute)))
	b := provider.New("k", semaphore.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()
	_, err := a.Acquire(ctx)
	require.NoError(t, err)
	_, err = b.Acquire(ctx)
	require.NoError(t, err)

	released, err := a.ForceReleaseAll(ctx)
	require.NoError(t, err)
	assert.True(t, released)

	n, err := a.AcquiredSlots(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSemaphore_RunReleasesOnSuccess(t *testing.T) {
	provider := semaphore.NewProvider(semaphore.NewMemoryAdapter(), 1)
	s := provider.New("job", semaphore.WithTTL(timespan.Of(time.Minute)))

	ctx := context.Background()
	ran := false
	err := s.Run(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	n, err := s.AcquiredSlots(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
