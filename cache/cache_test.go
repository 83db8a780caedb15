package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/internal"
	"github.com/nodecore/resync/timespan"
)

// TestScenario_S8 covers: add("k",1,null)=true; add("k",2,null)=false;
// put("k",3,null)=true; get("k")=3.
func TestScenario_S8(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter[int]()

	added, err := c.Add(ctx, "k", 1, timespan.Zero)
	require.NoError(t, err)
	require.True(t, added)

	added, err = c.Add(ctx, "k", 2, timespan.Zero)
	require.NoError(t, err)
	require.False(t, added)

	replaced, err := c.Put(ctx, "k", 3, timespan.Zero)
	require.NoError(t, err)
	require.True(t, replaced)

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, v)
}

// TestProperty_CacheTTL covers: an entry is live until its ttl elapses, then
// absent.
func TestProperty_CacheTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &MemoryAdapter[string]{mu: internal.NewKeyedMutex(), now: func() time.Time { return now }}

	_, err := c.Add(ctx, "k", "v", timespan.Of(time.Minute))
	require.NoError(t, err)

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	now = now.Add(61 * time.Second)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_AddWithNoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter[int]()

	_, err := c.Add(ctx, "k", 1, timespan.Zero)
	require.NoError(t, err)

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestCache_UpdatePreservesTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &MemoryAdapter[int]{mu: internal.NewKeyedMutex(), now: func() time.Time { return now }}

	_, err := c.Add(ctx, "k", 1, timespan.Of(time.Minute))
	require.NoError(t, err)

	ok, err := c.Update(ctx, "k", 2)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "update must not reset or extend ttl")
}

func TestCache_IncrementRejectsNonNumeric(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter[string]()

	_, err := c.Add(ctx, "k", "hello", timespan.Zero)
	require.NoError(t, err)

	_, err = c.Increment(ctx, "k", 1)
	require.ErrorIs(t, err, ErrNotNumeric)
}

func TestCache_IncrementAddsDelta(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter[int64]()

	_, err := c.Add(ctx, "k", 10, timespan.Zero)
	require.NoError(t, err)

	ok, err := c.Increment(ctx, "k", 5)
	require.NoError(t, err)
	require.True(t, ok)

	v, _, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.EqualValues(t, 15, v)
}

func TestCache_GetAndRemoveDeletesEntry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter[int]()

	_, err := c.Add(ctx, "k", 7, timespan.Zero)
	require.NoError(t, err)

	v, ok, err := c.GetAndRemove(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, v)

	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_RemoveByKeyPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter[int]()

	_, _ = c.Add(ctx, "ns:a", 1, timespan.Zero)
	_, _ = c.Add(ctx, "ns:b", 2, timespan.Zero)
	_, _ = c.Add(ctx, "other:c", 3, timespan.Zero)

	require.NoError(t, c.RemoveByKeyPrefix(ctx, "ns:"))

	_, ok, _ := c.Get(ctx, "ns:a")
	require.False(t, ok)
	_, ok, _ = c.Get(ctx, "ns:b")
	require.False(t, ok)
	_, ok, _ = c.Get(ctx, "other:c")
	require.True(t, ok)
}

// countingAdapter wraps an Adapter[T] and counts Get calls, with an
// optional delay to widen the race window for coalescing tests.
type countingAdapter struct {
	Adapter[int]
	calls atomic.Int64
	delay time.Duration
}

func (a *countingAdapter) Get(ctx context.Context, key string) (int, bool, error) {
	a.calls.Add(1)
	time.Sleep(a.delay)
	return a.Adapter.Get(ctx, key)
}

func TestCoalescingAdapter_DedupesConcurrentGets(t *testing.T) {
	ctx := context.Background()
	inner := &countingAdapter{Adapter: NewMemoryAdapter[int](), delay: 20 * time.Millisecond}
	_, err := inner.Adapter.Add(ctx, "k", 7, timespan.Zero)
	require.NoError(t, err)

	c := NewCoalescingAdapter[int](inner)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v, ok, err := c.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, 7, v)
		}()
	}
	wg.Wait()

	require.Less(t, inner.calls.Load(), int64(n), "coalescing must collapse concurrent callers into fewer underlying calls")
}
