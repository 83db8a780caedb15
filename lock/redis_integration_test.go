package lock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/lock"
	"github.com/nodecore/resync/storage/redis/redistest"
	"github.com/nodecore/resync/timespan"
)

func TestMain(m *testing.M) {
	stop := redistest.Init()
	code := m.Run()
	stop()
	os.Exit(code)
}

func TestRedisAdapter_AcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	client := redistest.Client(t)
	adapter := lock.NewRedisAdapter(client)

	key := t.Name()
	ok, err := adapter.Acquire(ctx, key, "owner-a", timespan.Of(5*time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = adapter.Acquire(ctx, key, "owner-b", timespan.Of(5*time.Second))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = adapter.Release(ctx, key, "owner-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = adapter.Acquire(ctx, key, "owner-b", timespan.Of(5*time.Second))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisAdapter_RefreshExtendsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	client := redistest.Client(t)
	adapter := lock.NewRedisAdapter(client)

	key := t.Name()
	_, err := adapter.Acquire(ctx, key, "owner-a", timespan.Of(time.Second))
	require.NoError(t, err)

	ok, err := adapter.Refresh(ctx, key, "owner-b", timespan.Of(5*time.Second))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = adapter.Refresh(ctx, key, "owner-a", timespan.Of(5*time.Second))
	require.NoError(t, err)
	require.True(t, ok)
}
