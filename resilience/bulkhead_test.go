package resilience_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/resilience"
)

// TestBulkhead_BoundsPeakConcurrency covers scenario S3: maxConcurrency=2,
// unbounded capacity, 5 tasks each sleeping 50ms should observe peak
// concurrency <= 2 and finish in roughly 3 waves.
func TestBulkhead_BoundsPeakConcurrency(t *testing.T) {
	limiter := resilience.NewLimiter(resilience.WithMaxConcurrency(2))

	var current, peak int64
	task := func() resilience.Invokable[int] {
		return resilience.Func[int](func(ctx context.Context) (int, error) {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return 0, nil
		})
	}

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := resilience.Bulkhead[int](limiter, task())
			_, _ = b.Invoke(context.Background())
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
}

func TestBulkhead_RejectsOverCapacity(t *testing.T) {
	limiter := resilience.NewLimiter(
		resilience.WithMaxConcurrency(1),
		resilience.WithMaxCapacity(1),
	)

	block := make(chan struct{})
	slow := resilience.Func[int](func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})

	started := make(chan struct{})
	go func() {
		b := resilience.Bulkhead[int](limiter, slow)
		go func() { started <- struct{}{} }()
		_, _ = b.Invoke(context.Background())
	}()
	<-started
	time.Sleep(10 * time.Millisecond) // let the first call take the only slot

	fast := resilience.Func[int](func(ctx context.Context) (int, error) { return 2, nil })
	b := resilience.Bulkhead[int](limiter, fast)
	_, err := b.Invoke(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCapacityFull)
	close(block)
}
