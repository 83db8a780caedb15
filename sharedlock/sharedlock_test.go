package sharedlock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/lock"
	"github.com/nodecore/resync/semaphore"
	"github.com/nodecore/resync/sharedlock"
	"github.com/nodecore/resync/timespan"
)

func newProvider(maxReaders int) *sharedlock.Provider {
	return sharedlock.NewProvider(lock.NewMemoryAdapter(), semaphore.NewMemoryAdapter(), maxReaders, timespan.Of(time.Minute))
}

// TestScenario_S6 covers spec scenario S6: two readers acquire with
// limit=2 and both succeed; a writer acquire then fails; once both readers
// release, the writer acquire succeeds.
func TestScenario_S6(t *testing.T) {
	provider := newProvider(2)
	ctx := context.Background()

	r1 := provider.New("doc")
	r2 := provider.New("doc")
	w := provider.New("doc")

	ok, err := r1.AcquireReader(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r2.AcquireReader(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.AcquireWriter(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r1.ReleaseReader(ctx)
	require.NoError(t, err)
	_, err = r2.ReleaseReader(ctx)
	require.NoError(t, err)

	ok, err = w.AcquireWriter(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestProperty_SharedLockExclusivity covers testable property 5: no state
// ever has a held writer and any non-expired reader slot simultaneously.
func TestProperty_SharedLockExclusivity(t *testing.T) {
	provider := newProvider(5)
	ctx := context.Background()

	w := provider.New("res")
	ok, err := w.AcquireWriter(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	var wg sync.WaitGroup
	var readerSuccesses int32
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := provider.New("res")
			ok, err := r.AcquireReader(ctx)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				readerSuccesses++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, readerSuccesses, "no reader may acquire while the writer holds the key")
}

func TestSharedLock_ForceReleaseClearsBothSides(t *testing.T) {
	provider := newProvider(2)
	ctx := context.Background()

	r := provider.New("k")
	ok, err := r.AcquireReader(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.ForceRelease(ctx))

	w := provider.New("k")
	ok, err = w.AcquireWriter(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
