package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	windowKeyPrefix   = "ratelimit:"
	idempotencyKeyTTL = 24 * time.Hour
)

// incrementWindowScript counts a hit in a fixed window. The first hit of a window
// sets the expiry; a key that somehow lost its TTL gets it back.
var incrementWindowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])

local current = redis.call('INCR', key)
if current == 1 then
	redis.call('PEXPIRE', key, window)
end

local ttl = redis.call('PTTL', key)
if ttl < 0 then
	redis.call('PEXPIRE', key, window)
	ttl = window
end

return {current, ttl}
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// IncrementWindow records a hit for key in the current window and returns the hit
// count so far and the time left until the window resets.
func (r *RedisAdapter) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrementWindowScript.Run(ctx, r.client, []string{windowKeyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}

	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
