// Package ratelimit implements a per-domain token bucket and a circuit
// breaker, backed by Redis Lua scripts so that multiple worker processes
// coordinate atomically against the shared store. Plain client-side
// GET/SET cannot satisfy the read-modify-write invariant under concurrent
// workers.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript implements refill-then-decrement atomically: refill
// tokens by elapsed*rate up to capacity, then admit iff tokens >= 1. Both
// branches persist (tokens, last).
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  last = now
end

local delta = now - last
if delta < 0 then delta = 0 end
tokens = math.min(capacity, tokens + delta * rate)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call('HSET', key, 'tokens', tokens, 'last', now)
redis.call('EXPIRE', key, 3600)

return {allowed, tostring(tokens)}
`)

// circuitBreakerScript implements inc/is_open/clear as a
// single script keyed by mode so the three operations share one EVALSHA
// round trip shape.
var circuitBreakerScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local openFor = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local mode = ARGV[5]

local countKey = key .. ':count'
local openKey = key .. ':open_until'

if mode == 'clear' then
  redis.call('DEL', countKey, openKey)
  return {0, 0, 0}
end

if mode == 'is_open' then
  local until_ts = tonumber(redis.call('GET', openKey)) or 0
  local count = tonumber(redis.call('GET', countKey)) or 0
  local is_open = 0
  if until_ts > now then is_open = 1 end
  return {is_open, count, until_ts}
end

-- mode == 'inc'
local count = redis.call('INCR', countKey)
redis.call('EXPIRE', countKey, window)

local until_ts = tonumber(redis.call('GET', openKey)) or 0
if count >= threshold then
  until_ts = now + openFor
  redis.call('SET', openKey, until_ts, 'EX', openFor)
end

local is_open = 0
if until_ts > now then is_open = 1 end
return {is_open, count, until_ts}
`)

const (
	// DefaultCapacity and DefaultRefillRate are the token bucket's defaults.
	DefaultCapacity  = 20
	DefaultRefillRate = 10.0
)

// TokenBucket gates traffic to a domain via a Redis-backed token bucket.
type TokenBucket struct {
	rdb      redis.Scripter
	capacity float64
	rate     float64
}

// NewTokenBucket constructs a TokenBucket with the given capacity and
// refill rate (tokens/second).
func NewTokenBucket(rdb redis.Scripter, capacity, rate float64) *TokenBucket {
	return &TokenBucket{rdb: rdb, capacity: capacity, rate: rate}
}

// Allow consults the shared bucket for domain and reports whether this
// request may proceed, along with the tokens remaining after the decision.
func (tb *TokenBucket) Allow(ctx context.Context, domain string) (bool, float64, error) {
	key := "mailcheck:rl:" + domain
	now := float64(time.Now().UnixNano()) / 1e9

	res, err := tokenBucketScript.Run(ctx, tb.rdb, []string{key}, tb.capacity, tb.rate, now).Result()
	if err != nil {
		return false, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, nil
	}
	allowed := toInt64(vals[0]) == 1
	remaining := toFloat64(vals[1])
	return allowed, remaining, nil
}

// Breaker is the per-destination (MX host or domain) circuit breaker.
type Breaker struct {
	rdb       redis.Scripter
	window    time.Duration
	threshold int
	openFor   time.Duration
}

// NewBreaker constructs a Breaker with the given failure window, trip
// threshold, and open duration.
func NewBreaker(rdb redis.Scripter, window time.Duration, threshold int, openFor time.Duration) *Breaker {
	return &Breaker{rdb: rdb, window: window, threshold: threshold, openFor: openFor}
}

// Inc records a failure for destination. Once count reaches threshold the
// breaker opens until now+openFor.
func (b *Breaker) Inc(ctx context.Context, destination string) (isOpen bool, count int, openedUntil time.Time, err error) {
	return b.eval(ctx, destination, "inc")
}

// IsOpen reports whether destination is currently tripped.
func (b *Breaker) IsOpen(ctx context.Context, destination string) (bool, int, error) {
	isOpen, count, _, err := b.eval(ctx, destination, "is_open")
	return isOpen, count, err
}

// Clear resets both the failure count and the open state for destination.
func (b *Breaker) Clear(ctx context.Context, destination string) error {
	_, _, _, err := b.eval(ctx, destination, "clear")
	return err
}

func (b *Breaker) eval(ctx context.Context, destination, mode string) (bool, int, time.Time, error) {
	key := "mailcheck:cb:" + destination
	now := float64(time.Now().Unix())

	res, err := circuitBreakerScript.Run(ctx, b.rdb, []string{key},
		int(b.window.Seconds()), b.threshold, int(b.openFor.Seconds()), now, mode).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return false, 0, time.Time{}, nil
	}
	isOpen := toInt64(vals[0]) == 1
	count := int(toInt64(vals[1]))
	until := time.Unix(toInt64(vals[2]), 0)
	return isOpen, count, until, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		var out int64
		_, _ = fmt.Sscan(n, &out)
		return out
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case string:
		var out float64
		_, _ = fmt.Sscan(n, &out)
		return out
	case int64:
		return float64(n)
	default:
		return 0
	}
}
