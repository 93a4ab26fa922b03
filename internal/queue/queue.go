// Package queue adapts the Redis BRPOP/LPUSH FIFO and ZSET-retry pattern
// into a typed job queue for model.JobEnvelope.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devyanshu/mailcheck/internal/model"
)

const (
	mainQueueKey  = "mailcheck:jobs"
	retryQueueKey = "mailcheck:jobs:retry"
)

// Queue is a Redis-backed FIFO with a delayed-retry side channel.
type Queue struct {
	rdb redis.Cmdable
}

// New constructs a Queue over an existing Redis client.
func New(rdb redis.Cmdable) *Queue {
	return &Queue{rdb: rdb}
}

// Push enqueues env for immediate processing.
func (q *Queue) Push(ctx context.Context, env model.JobEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, mainQueueKey, payload).Err()
}

// Pop blocks up to timeout for the next envelope. It returns (env, false,
// nil) if the wait elapsed with nothing available.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (model.JobEnvelope, bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, mainQueueKey).Result()
	if err == redis.Nil {
		return model.JobEnvelope{}, false, nil
	}
	if err != nil {
		return model.JobEnvelope{}, false, err
	}
	if len(res) < 2 {
		return model.JobEnvelope{}, false, fmt.Errorf("queue: malformed BRPOP reply %v", res)
	}

	var env model.JobEnvelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return model.JobEnvelope{}, false, err
	}
	return env, true, nil
}

// Defer schedules env for reprocessing after delay, used for greylisted
// (4xx) SMTP outcomes.
func (q *Queue) Defer(ctx context.Context, env model.JobEnvelope, delay time.Duration) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	score := float64(time.Now().Add(delay).Unix())
	return q.rdb.ZAdd(ctx, retryQueueKey, redis.Z{Score: score, Member: payload}).Err()
}

// Depths returns the current main-queue and retry-queue lengths, for the
// metrics gauges.
func (q *Queue) Depths(ctx context.Context) (main, retry int64, err error) {
	main, err = q.rdb.LLen(ctx, mainQueueKey).Result()
	if err != nil {
		return 0, 0, err
	}
	retry, err = q.rdb.ZCard(ctx, retryQueueKey).Result()
	return main, retry, err
}

// PromoteReady moves every retry-queue entry whose delay has elapsed back
// onto the main queue. Callers run this on a ticker (see internal/worker).
func (q *Queue) PromoteReady(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	items, err := q.rdb.ZRangeByScore(ctx, retryQueueKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, item := range items {
		removed, err := q.rdb.ZRem(ctx, retryQueueKey, item).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, mainQueueKey, item).Err(); err != nil {
			// Push failed; put it back so it is retried on the next sweep
			// rather than lost.
			q.rdb.ZAdd(ctx, retryQueueKey, redis.Z{Score: float64(time.Now().Unix()), Member: item})
			continue
		}
		promoted++
	}
	return promoted, nil
}
