package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Scores are milliseconds taken from the Redis server clock so that every
// router instance judges the window against the same time source.
var slidingWindowAdmitScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if count < limit then
	redis.call('ZADD', KEYS[1], now, ARGV[3])
	redis.call('PEXPIRE', KEYS[1], window)
	return 1
end
return 0
`)

var windowCountScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - tonumber(ARGV[1]))
return redis.call('ZCARD', KEYS[1])
`)

var setIfAbsentScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
	return {1, 0}
end
return {0, redis.call('PTTL', KEYS[1])}
`)

type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(k string) string {
	return s.keyPrefix + k
}

func (s *RedisStore) SlidingWindowAdmit(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	admitted, err := slidingWindowAdmitScript.Run(ctx, s.client,
		[]string{s.key(key)},
		window.Milliseconds(), limit, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis sliding window admit failed: %w", err)
	}
	return admitted == 1, nil
}

func (s *RedisStore) WindowCount(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := windowCountScript.Run(ctx, s.client, []string{s.key(key)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis window count failed: %w", err)
	}
	return count, nil
}

func (s *RedisStore) SetIfAbsentWithTTL(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	res, err := setIfAbsentScript.Run(ctx, s.client,
		[]string{s.key(key)},
		time.Now().UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis set-if-absent failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis set-if-absent returned %d values", len(res))
	}

	if res[0] == 1 {
		return true, 0, nil
	}

	remaining := time.Duration(res[1]) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
