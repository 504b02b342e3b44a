package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript evaluates the token bucket and the sliding sustained window
// atomically. It returns {allowed, retry_ms, remaining, reset_ms}.
var rateLimitScript = redis.NewScript(`
local now_ms = tonumber(ARGV[1])
local burst_capacity = tonumber(ARGV[2])
local refill_per_ms = tonumber(ARGV[3])
local sustained_limit = tonumber(ARGV[4])
local sustained_window_ms = tonumber(ARGV[5])

if refill_per_ms <= 0 then
  refill_per_ms = 0.001
end

local bucket_key = KEYS[1]
local window_key = KEYS[2]
local seq_key = KEYS[3]

local tokens = burst_capacity
local last_ms = now_ms
local stored_tokens = redis.call("HGET", bucket_key, "tokens")
local stored_last = redis.call("HGET", bucket_key, "last_ms")
if stored_tokens then
  tokens = tonumber(stored_tokens)
end
if stored_last then
  last_ms = tonumber(stored_last)
end
if now_ms < last_ms then
  last_ms = now_ms
end
tokens = math.min(burst_capacity, tokens + ((now_ms - last_ms) * refill_per_ms))

redis.call("ZREMRANGEBYSCORE", window_key, "-inf", now_ms - sustained_window_ms)
local window_count = redis.call("ZCARD", window_key)

local allowed = 0
if tokens >= 1 and window_count < sustained_limit then
  allowed = 1
  tokens = tokens - 1
  local seq = redis.call("INCR", seq_key)
  redis.call("ZADD", window_key, now_ms, tostring(now_ms) .. "-" .. tostring(seq))
  window_count = window_count + 1
end

local retry_ms = 0
if tokens < 1 then
  retry_ms = math.ceil((1 - tokens) / refill_per_ms)
end
if window_count >= sustained_limit then
  local oldest = redis.call("ZRANGE", window_key, 0, 0, "WITHSCORES")
  if oldest and oldest[2] then
    local wait = math.ceil((tonumber(oldest[2]) + sustained_window_ms) - now_ms)
    if wait > retry_ms then
      retry_ms = wait
    end
  end
end
if retry_ms <= 0 then
  retry_ms = 1
end

local remaining = math.floor(tokens)
if sustained_limit - window_count < remaining then
  remaining = sustained_limit - window_count
end
if remaining < 0 then
  remaining = 0
end

redis.call("HSET", bucket_key, "tokens", tostring(tokens), "last_ms", tostring(now_ms))
local bucket_ttl_ms = math.max(sustained_window_ms, math.ceil(burst_capacity / refill_per_ms))
redis.call("PEXPIRE", bucket_key, bucket_ttl_ms)
redis.call("PEXPIRE", window_key, sustained_window_ms)
redis.call("PEXPIRE", seq_key, sustained_window_ms)

local reset_ms = now_ms + sustained_window_ms
if allowed == 0 then
  reset_ms = now_ms + retry_ms
end
return {allowed, retry_ms, remaining, reset_ms}
`)

// RedisLimiter shares rate limit state across API instances. Decisions are
// made server-side in a single script call per request.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	if l.client == nil {
		return Decision{}, fmt.Errorf("redis client is nil")
	}
	policy = normalizePolicy(policy)
	if key == "" {
		key = "unknown"
	}
	now := time.Now()
	windowMS := int(policy.SustainedWindow / time.Millisecond)
	if windowMS <= 0 {
		windowMS = 1000
	}
	base := fmt.Sprintf("%s:%s", l.prefix, key)
	raw, err := rateLimitScript.Run(
		ctx,
		l.client,
		[]string{base, base + ":sw", base + ":seq"},
		now.UnixMilli(),
		policy.BurstCapacity,
		policy.BurstRefillPerSec/1000.0,
		policy.SustainedLimit,
		windowMS,
	).Result()
	if err != nil {
		return Decision{}, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 4 {
		return Decision{}, fmt.Errorf("unexpected redis script response type")
	}

	parsed := make([]int64, 4)
	for i, v := range values {
		parsed[i], err = parseRedisInt64(v)
		if err != nil {
			return Decision{}, err
		}
	}
	retryMS := parsed[1]
	if retryMS <= 0 {
		retryMS = 1
	}
	resetMS := parsed[3]
	if resetMS <= now.UnixMilli() {
		resetMS = now.UnixMilli() + retryMS
	}
	remaining := parsed[2]
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    parsed[0] == 1,
		RetryAfter: time.Duration(retryMS) * time.Millisecond,
		Remaining:  int(remaining),
		ResetAt:    time.UnixMilli(resetMS),
	}, nil
}

func parseRedisInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("redis response overflows int64")
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected redis response type %T", v)
	}
}
