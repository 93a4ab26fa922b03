package ratelimit_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devyanshu/mailcheck/internal/ratelimit"
)

// fakeScripter replicates the two Lua scripts' semantics in Go against an
// in-memory store, standing in for a real Redis server the way the rest of
// this module injects fakes for DNS lookups and SMTP dials.
type fakeScripter struct {
	hashes map[string]map[string]float64
	ints   map[string]int64
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{hashes: map[string]map[string]float64{}, ints: map[string]int64{}}
}

func (f *fakeScripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}
func (f *fakeScripter) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}
func (f *fakeScripter) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}
func (f *fakeScripter) EvalShaRO(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("fakesha")
	return cmd
}

// run distinguishes the token-bucket call (3 numeric args) from the circuit
// breaker call (5 args, last a mode string) by arity.
func (f *fakeScripter) run(ctx context.Context, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	key := keys[0]

	if len(args) == 3 {
		capacity := asFloat(args[0])
		rate := asFloat(args[1])
		now := asFloat(args[2])

		state := f.hashes[key]
		if state == nil {
			state = map[string]float64{"tokens": capacity, "last": now}
			f.hashes[key] = state
		}
		tokens, last := state["tokens"], state["last"]

		delta := now - last
		if delta < 0 {
			delta = 0
		}
		tokens += delta * rate
		if tokens > capacity {
			tokens = capacity
		}

		allowed := int64(0)
		if tokens >= 1 {
			allowed = 1
			tokens--
		}
		state["tokens"], state["last"] = tokens, now

		cmd.SetVal([]interface{}{allowed, strconv.FormatFloat(tokens, 'f', -1, 64)})
		return cmd
	}

	threshold := int(asFloat(args[1]))
	openFor := int64(asFloat(args[2]))
	now := int64(asFloat(args[3]))
	mode := args[4].(string)

	countKey, openKey := key+":count", key+":open_until"

	switch mode {
	case "clear":
		delete(f.ints, countKey)
		delete(f.ints, openKey)
		cmd.SetVal([]interface{}{int64(0), int64(0), int64(0)})
	case "is_open":
		until, count := f.ints[openKey], f.ints[countKey]
		isOpen := int64(0)
		if until > now {
			isOpen = 1
		}
		cmd.SetVal([]interface{}{isOpen, count, until})
	default: // inc
		f.ints[countKey]++
		count := f.ints[countKey]
		until := f.ints[openKey]
		if count >= int64(threshold) {
			until = now + openFor
			f.ints[openKey] = until
		}
		isOpen := int64(0)
		if until > now {
			isOpen = 1
		}
		cmd.SetVal([]interface{}{isOpen, count, until})
	}
	return cmd
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func TestTokenBucket_AllowsThenExhausts(t *testing.T) {
	f := newFakeScripter()
	tb := ratelimit.NewTokenBucket(f, 2, 0) // no refill, capacity 2

	ok1, _, err := tb.Allow(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, _, err := tb.Allow(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, ok2)

	ok3, _, err := tb.Allow(context.Background(), "example.com")
	require.NoError(t, err)
	assert.False(t, ok3)
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	f := newFakeScripter()
	b := ratelimit.NewBreaker(f, time.Minute, 3, time.Minute)

	for i := 0; i < 2; i++ {
		open, _, _, err := b.Inc(context.Background(), "mx.example.com")
		require.NoError(t, err)
		assert.False(t, open)
	}

	open, count, _, err := b.Inc(context.Background(), "mx.example.com")
	require.NoError(t, err)
	assert.True(t, open)
	assert.Equal(t, 3, count)
}

func TestBreaker_ClearResets(t *testing.T) {
	f := newFakeScripter()
	b := ratelimit.NewBreaker(f, time.Minute, 1, time.Minute)

	_, _, _, err := b.Inc(context.Background(), "mx.example.com")
	require.NoError(t, err)

	require.NoError(t, b.Clear(context.Background(), "mx.example.com"))

	isOpen, count, err := b.IsOpen(context.Background(), "mx.example.com")
	require.NoError(t, err)
	assert.False(t, isOpen)
	assert.Equal(t, 0, count)
}
