package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nodecore/resync/timespan"
)

// acquireScript is dsync/lock/script.go's "lock" script unchanged: SET
// key val NX [PX ttl], returning whether the key was absent.
var acquireScript = redis.NewScript(`
	local key = KEYS[1]
	local val = ARGV[1]
	local ttl_ms = tonumber(ARGV[2])

	if ttl_ms > 0 then
		return redis.call('SET', key, val, 'NX', 'PX', ttl_ms)
	end
	return redis.call('SET', key, val, 'NX')
`)

// releaseScript is dsync/lock/script.go's "unlock" script: delete key iff
// its current value matches the caller's owner token.
var releaseScript = redis.NewScript(`
	local key = KEYS[1]
	local val = ARGV[1]

	if redis.call('GET', key) == val then
		return redis.call('DEL', key)
	end
	return 0
`)

// refreshScript is dsync/lock/script.go's "extend" script: re-apply the ttl
// iff the key's current value matches the caller's owner token.
var refreshScript = redis.NewScript(`
	local key = KEYS[1]
	local val = ARGV[1]
	local ttl_ms = tonumber(ARGV[2])

	if redis.call('GET', key) ~= val then
		return 0
	end

	if ttl_ms > 0 then
		redis.call('PEXPIRE', key, ttl_ms)
	else
		redis.call('PERSIST', key)
	end
	return 1
`)

// RedisAdapter is an Adapter backed by a single Redis string per key, a
// near-direct generalization of dsync/lock.Locker's three Lua scripts from a
// hardcoded lock-only client into the full Adapter contract (adding Find).
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

var _ Adapter = (*RedisAdapter)(nil)

func (a *RedisAdapter) Acquire(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	res, err := acquireScript.Run(ctx, a.client, []string{key}, owner, ttl.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res == "OK", nil
}

func (a *RedisAdapter) Release(ctx context.Context, key, owner string) (bool, error) {
	n, err := releaseScript.Run(ctx, a.client, []string{key}, owner).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (a *RedisAdapter) ForceRelease(ctx context.Context, key string) (bool, error) {
	n, err := a.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *RedisAdapter) Refresh(ctx context.Context, key, owner string, ttl timespan.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, a.client, []string{key}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (a *RedisAdapter) Find(ctx context.Context, key string) (string, timespan.Duration, bool, error) {
	owner, err := a.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}

	pttl, err := a.client.PTTL(ctx, key).Result()
	if err != nil {
		return "", 0, false, err
	}
	if pttl < 0 {
		return owner, 0, true, nil
	}
	return owner, timespan.FromMillis(int64(pttl / time.Millisecond)), true, nil
}
