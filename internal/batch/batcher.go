// Package batch groups addresses bound for the same domain into ordered
// batches, capped by size or a maximum wait. It only groups addresses; it
// does not open or share SMTP sessions itself.
package batch

import (
	"context"
	"sync"
	"time"
)

// DefaultBatchSize and DefaultMaxWait are the batcher's defaults.
const (
	DefaultBatchSize = 20
	DefaultMaxWait   = 400 * time.Millisecond
)

// Batcher buffers per-domain queues and emits ordered batches once the
// queue depth reaches BatchSize or MaxWait has elapsed since the first
// item in the current batch arrived.
type Batcher struct {
	BatchSize int
	MaxWait   time.Duration

	mu     sync.Mutex
	queues map[string]chan string
}

// New constructs a Batcher with the given size/wait caps.
func New(batchSize int, maxWait time.Duration) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Batcher{BatchSize: batchSize, MaxWait: maxWait, queues: make(map[string]chan string)}
}

func (b *Batcher) queueFor(domain string) chan string {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[domain]
	if !ok {
		q = make(chan string, 4096)
		b.queues[domain] = q
	}
	return q
}

// Add enqueues email under its domain's queue. Ordering within a domain is
// preserved by the channel's FIFO semantics.
func (b *Batcher) Add(domain, email string) {
	b.queueFor(domain) <- email
}

// NextBatch blocks for the first item (respecting ctx), then drains up to
// BatchSize items total or until MaxWait has elapsed since the first item
// arrived, whichever comes first. Returns an empty slice if ctx is done
// before any item arrives.
func (b *Batcher) NextBatch(ctx context.Context, domain string) []string {
	q := b.queueFor(domain)

	var first string
	select {
	case first = <-q:
	case <-ctx.Done():
		return nil
	}

	batch := []string{first}
	deadline := time.NewTimer(b.MaxWait)
	defer deadline.Stop()

	for len(batch) < b.BatchSize {
		select {
		case item := <-q:
			batch = append(batch, item)
		case <-deadline.C:
			return batch
		case <-ctx.Done():
			return batch
		}
	}
	return batch
}
