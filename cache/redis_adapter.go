package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/nodecore/resync/timespan"
)

// putScript is SET key val [PX ttl] GET, unconditionally writing value
// while returning the prior value (or nil) in one round trip, generalizing
// dsync/cache.Cache.LoadOrStore's "SET ... NX GET" trick to the
// always-write case Put needs.
var putScript = redis.NewScript(`
	local key = KEYS[1]
	local val = ARGV[1]
	local ttl_ms = tonumber(ARGV[2])

	if ttl_ms > 0 then
		return redis.call('SET', key, val, 'PX', ttl_ms, 'GET')
	end
	return redis.call('SET', key, val, 'GET')
`)

// updateScript only writes if key already exists, preserving its current
// ttl via Redis's KEEPTTL flag.
var updateScript = redis.NewScript(`
	local key = KEYS[1]
	local val = ARGV[1]

	if redis.call('EXISTS', key) == 0 then
		return 0
	end
	redis.call('SET', key, val, 'KEEPTTL')
	return 1
`)

// incrementScript increments a live entry's numeric value while preserving
// its ttl; INCRBY/INCRBYFLOAT already keep the existing ttl in Redis.
var incrementScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])

	if redis.call('EXISTS', key) == 0 then
		return 0
	end
	redis.call('INCRBY', key, delta)
	return 1
`)

// RedisAdapter is an Adapter[T] backed by one JSON-serialized Redis string
// per key, generalizing dsync/cache.Cache's raw []byte operations to a
// typed value and adding prefix-scoped bulk removal via SCAN.
type RedisAdapter[T any] struct {
	client *redis.Client
	prefix string
}

func NewRedisAdapter[T any](client *redis.Client, prefix string) *RedisAdapter[T] {
	return &RedisAdapter[T]{client: client, prefix: prefix}
}

var _ Adapter[int] = (*RedisAdapter[int])(nil)

func (a *RedisAdapter[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (a *RedisAdapter[T]) GetAndRemove(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := a.client.Do(ctx, "GETDEL", key).Result()
	if errors.Is(err, redis.Nil) || raw == nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	str, ok := raw.(string)
	if !ok {
		return zero, false, errors.New("cache: unexpected GETDEL reply type")
	}
	var v T
	if err := json.Unmarshal([]byte(str), &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (a *RedisAdapter[T]) Add(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	var ok bool
	if ttl.IsZero() {
		ok, err = a.client.SetNX(ctx, key, raw, 0).Result()
	} else {
		ok, err = a.client.SetNX(ctx, key, raw, ttl.Std()).Result()
	}
	return ok, err
}

func (a *RedisAdapter[T]) Put(ctx context.Context, key string, value T, ttl timespan.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	prev, err := putScript.Run(ctx, a.client, []string{key}, string(raw), ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	return prev != nil, nil
}

func (a *RedisAdapter[T]) Update(ctx context.Context, key string, value T) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	n, err := updateScript.Run(ctx, a.client, []string{key}, string(raw)).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (a *RedisAdapter[T]) Increment(ctx context.Context, key string, delta int64) (bool, error) {
	n, err := incrementScript.Run(ctx, a.client, []string{key}, delta).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return false, ErrNotNumeric
		}
		return false, err
	}
	return n == 1, nil
}

func (a *RedisAdapter[T]) RemoveMany(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	n, err := a.client.Del(ctx, keys...).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *RedisAdapter[T]) RemoveAll(ctx context.Context) error {
	return a.RemoveByKeyPrefix(ctx, a.prefix)
}

func (a *RedisAdapter[T]) RemoveByKeyPrefix(ctx context.Context, prefix string) error {
	iter := a.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return a.client.Del(ctx, keys...).Err()
}
