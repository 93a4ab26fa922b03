// Package reputation maintains rolling per-domain verification counters in
// Redis hashes. It is an observability side-channel: the decision engine
// never reads it, deliberately kept independent of the live decision path.
package reputation

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devyanshu/mailcheck/internal/model"
)

const keyPrefix = "mailcheck:rep:"

// Store records verification outcomes per domain and derives a trust level
// from the accumulated ratios.
type Store struct {
	rdb redis.Cmdable
}

// New constructs a Store over an existing Redis client.
func New(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

// Record increments the domain's total and per-status counters. Call once
// per finished verification.
func (s *Store) Record(ctx context.Context, domain string, status model.VerificationStatus) error {
	key := keyPrefix + domain
	pipe := s.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	pipe.HIncrBy(ctx, key, string(status), 1)
	pipe.HSet(ctx, key, "last_seen", time.Now().Unix())
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the accumulated entry for domain. A domain with no history
// returns a zero-valued entry and no error.
func (s *Store) Get(ctx context.Context, domain string) (model.ReputationEntry, error) {
	key := keyPrefix + domain
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return model.ReputationEntry{}, err
	}

	entry := model.ReputationEntry{
		Total:         atoi(vals["total"]),
		Deliverable:   atoi(vals[string(model.Deliverable)]),
		Undeliverable: atoi(vals[string(model.Undeliverable)]),
		Risky:         atoi(vals[string(model.Risky)]),
		Unknown:       atoi(vals[string(model.Unknown)]),
	}
	if ts := atoi(vals["last_seen"]); ts > 0 {
		entry.LastSeen = time.Unix(int64(ts), 0)
	}
	return entry, nil
}

// Score computes the weighted trust score for entry:
// 40*deliverable_ratio - 50*undeliverable_ratio - 20*risky_ratio, rounded
// to the nearest integer. ok is false when entry.Total hasn't reached 5
// yet, too little history to score.
func Score(entry model.ReputationEntry) (score int, ok bool) {
	if entry.Total < 5 {
		return 0, false
	}
	total := float64(entry.Total)
	deliverableRatio := float64(entry.Deliverable) / total
	undeliverableRatio := float64(entry.Undeliverable) / total
	riskyRatio := float64(entry.Risky) / total

	raw := 40*deliverableRatio - 50*undeliverableRatio - 20*riskyRatio
	return int(math.Round(raw)), true
}

// Score fetches domain's entry and returns its weighted trust score. It
// returns 0 when the domain has fewer than 5 recorded verifications.
func (s *Store) Score(ctx context.Context, domain string) (int, error) {
	entry, err := s.Get(ctx, domain)
	if err != nil {
		return 0, err
	}
	score, _ := Score(entry)
	return score, nil
}

// TrustLevel buckets entry's weighted Score into a coarse trust label.
func TrustLevel(entry model.ReputationEntry) string {
	score, ok := Score(entry)
	if !ok {
		return "unknown"
	}
	switch {
	case score >= 30:
		return "high"
	case score >= 10:
		return "medium"
	case score > 0:
		return "low"
	default:
		return "unknown"
	}
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
