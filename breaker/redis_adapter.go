package breaker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// compareAndSet stores ARGV[2] at KEYS[1] only if the key is absent or its
// current value equals ARGV[1], the optimistic-lock token read back by
// RedisAdapter.Transaction before it computed the new value. Generalizes
// dsync/circuitbreaker/script.go's HSET-if-status-matches script from a
// single status field into an opaque serialized payload.
var compareAndSet = redis.NewScript(`
	local key = KEYS[1]
	local old = ARGV[1]
	local new = ARGV[2]
	local ttl_ms = tonumber(ARGV[3]) or 0

	local current = redis.call('GET', key)
	if current == false then
		current = ''
	end

	if current ~= old then
		return 0
	end

	if ttl_ms > 0 then
		redis.call('SET', key, new, 'PX', ttl_ms)
	else
		redis.call('SET', key, new)
	end
	return 1
`)

// RedisAdapter is a StorageAdapter backed by a single serialized string per
// key, generalizing dsync/circuitbreaker's Redis-backed store from a raw
// status integer into a JSON-encoded Record[M].
type RedisAdapter[M any] struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter[M any](client *redis.Client, ttl time.Duration) *RedisAdapter[M] {
	return &RedisAdapter[M]{client: client, ttl: ttl}
}

func (a *RedisAdapter[M]) Find(ctx context.Context, key string) (Record[M], bool, error) {
	raw, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record[M]{}, false, nil
	}
	if err != nil {
		return Record[M]{}, false, err
	}

	var r Record[M]
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record[M]{}, false, err
	}
	return r, true, nil
}

func (a *RedisAdapter[M]) Remove(ctx context.Context, key string) error {
	return a.client.Del(ctx, key).Err()
}

func (a *RedisAdapter[M]) Transaction(ctx context.Context, key string, fn func(current Record[M], ok bool) (Record[M], error)) (Record[M], error) {
	for {
		current, ok, err := a.Find(ctx, key)
		if err != nil {
			return Record[M]{}, err
		}

		var oldRaw []byte
		if ok {
			oldRaw, _ = json.Marshal(current)
		}

		next, err := fn(current, ok)
		if err != nil {
			return Record[M]{}, err
		}

		newRaw, err := json.Marshal(next)
		if err != nil {
			return Record[M]{}, err
		}

		ttlMs := int64(0)
		if a.ttl > 0 {
			ttlMs = a.ttl.Milliseconds()
		}

		res, err := compareAndSet.Run(ctx, a.client, []string{key}, string(oldRaw), string(newRaw), ttlMs).Int64()
		if err != nil {
			return Record[M]{}, err
		}
		if res == 1 {
			return next, nil
		}
		// Another writer raced us; retry against the fresh value.
	}
}
