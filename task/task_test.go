package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/task"
)

func TestTask_AwaitResolves(t *testing.T) {
	tk := task.New[int](context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})

	v, err := tk.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, tk.IsResolved())
}

func TestTask_CancelRejects(t *testing.T) {
	tk := task.New[int](context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	tk.Cancel()
	_, err := tk.Await()
	assert.Error(t, err)
	assert.True(t, tk.IsRejected())
}

func TestSet_RaceReturnsFirstWinner(t *testing.T) {
	slow := task.New[string](context.Background(), func(ctx context.Context) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "slow", nil
	})
	fast := task.New[string](context.Background(), func(ctx context.Context) (string, error) {
		return "fast", nil
	})

	v, err := task.Set[string]{slow, fast}.Race(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func TestSet_AnySkipsFailures(t *testing.T) {
	failing := task.New[int](context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	ok := task.New[int](context.Background(), func(ctx context.Context) (int, error) {
		return 7, nil
	})

	v, err := task.Set[int]{failing, ok}.Any(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGroup_CoalescesConcurrentCallers(t *testing.T) {
	g := task.NewGroup[int]()
	var calls int

	fn := func(ctx context.Context) (int, error) {
		calls++
		time.Sleep(20 * time.Millisecond)
		return calls, nil
	}

	results := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			v, err := g.Do(context.Background(), "k", fn)
			require.NoError(t, err)
			results <- v
		}()
	}

	r1, r2 := <-results, <-results
	assert.Equal(t, 1, calls)
	assert.Equal(t, r1, r2)
}
