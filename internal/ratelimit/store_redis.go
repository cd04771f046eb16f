package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefix for rate limit buckets.
const bucketKeyPrefix = "rl:bucket:"

// allowScript trims expired entries, checks the bound, and records the
// request in one atomic step, so concurrent callers can never all observe
// the same count and push the bucket past the limit.
//
// KEYS[1] bucket key; ARGV: now (ns), window (ns), limit, member.
// Returns {allowed, count after the call, oldest score or '0'}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, count, oldest[2]}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, math.ceil(window / 1000000))
return {1, count + 1, '0'}
`)

// RedisBucketStore implements BucketStore on a Redis sorted set per key,
// scored by request time. This is the implementation for networked
// deployments where buckets must survive restarts.
type RedisBucketStore struct {
	client *redis.Client
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// Allow runs the check-and-add script for key. Members are random so two
// requests landing on the same nanosecond still count separately.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	redisKey := bucketKeyPrefix + key

	raw, err := allowScript.Run(ctx, s.client, []string{redisKey},
		now.UnixNano(), window.Nanoseconds(), limit, uuid.NewString()).Result()
	if err != nil {
		return nil, err
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}
	allowed, _ := reply[0].(int64)
	count, _ := reply[1].(int64)

	if allowed != 1 {
		resetAt := now.Add(window)
		if oldest, ok := reply[2].(string); ok {
			if score, err := strconv.ParseFloat(oldest, 64); err == nil && score > 0 {
				resetAt = time.Unix(0, int64(score)).Add(window)
			}
		}
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count),
		ResetAt:   now.Add(window),
	}, nil
}

// Reset clears the rate limit counter for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, bucketKeyPrefix+key).Err()
}
