package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devyanshu/mailcheck/internal/batch"
	"github.com/devyanshu/mailcheck/internal/logging"
	"github.com/devyanshu/mailcheck/internal/metrics"
	"github.com/devyanshu/mailcheck/internal/model"
	"github.com/devyanshu/mailcheck/internal/queue"
	"github.com/devyanshu/mailcheck/internal/reputation"
	"github.com/devyanshu/mailcheck/internal/smtppool"
	"github.com/devyanshu/mailcheck/internal/storage"
)

// jobEmailSep joins a jobID and an email into the single string value the
// domain batcher queues carry, since batch.Batcher's queues are untyped.
const jobEmailSep = "\x00"

// Pool drains JobEnvelopes from a Queue and fans each address out to the
// Pipeline under a bounded concurrency semaphore, using a
// buffered-channel worker-pool shape. Addresses are grouped by domain
// through Batcher first; each address of a batch is then probed in its own
// goroutine with its own MAIL FROM, so same-domain probes reuse a pooled
// SMTP session only when an idle one is free at that moment.
type Pool struct {
	Pipeline *Pipeline
	Queue    *queue.Queue
	Store    *storage.Store
	Rep      *reputation.Store
	Log      *logrus.Logger
	Batcher  *batch.Batcher

	Concurrency   int
	PollTimeout   time.Duration
	GreylistDelay time.Duration

	consumersMu sync.Mutex
	consumers   map[string]bool
}

// Run blocks, pulling envelopes off the queue until ctx is cancelled. Each
// envelope's addresses are enqueued onto the domain batcher; one consumer
// goroutine per domain drains batches and fans work out to the Pipeline
// under a bounded concurrency semaphore.
func (p *Pool) Run(ctx context.Context) {
	sem := make(chan struct{}, p.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, ok, err := p.Queue.Pop(ctx, p.PollTimeout)
		if err != nil {
			p.Log.WithError(err).Warn("queue pop failed")
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		if err := p.Store.CreateJob(ctx, env.JobID, env.OwnerID, len(env.Emails)); err != nil {
			p.Log.WithError(err).WithField("job", env.JobID).Warn("failed to register job")
		}

		for _, email := range env.Emails {
			domain := domainOf(email)
			p.ensureConsumer(ctx, domain, sem)
			p.Batcher.Add(domain, env.JobID+jobEmailSep+email)
		}
	}
}

// ensureConsumer starts exactly one goroutine per domain that loops
// NextBatch for the lifetime of ctx; a domain already being drained is a
// no-op.
func (p *Pool) ensureConsumer(ctx context.Context, domain string, sem chan struct{}) {
	p.consumersMu.Lock()
	defer p.consumersMu.Unlock()

	if p.consumers == nil {
		p.consumers = make(map[string]bool)
	}
	if p.consumers[domain] {
		return
	}
	p.consumers[domain] = true
	go p.consumeDomain(ctx, domain, sem)
}

func (p *Pool) consumeDomain(ctx context.Context, domain string, sem chan struct{}) {
	for {
		items := p.Batcher.NextBatch(ctx, domain)
		if len(items) == 0 {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		for _, item := range items {
			jobID, email, ok := strings.Cut(item, jobEmailSep)
			if !ok {
				continue
			}
			sem <- struct{}{}
			go func(jobID, email string) {
				defer func() { <-sem }()
				p.processOne(ctx, jobID, email)
			}(jobID, email)
		}
	}
}

func domainOf(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	return domain
}

func (p *Pool) processOne(ctx context.Context, jobID, email string) {
	fields := logging.WorkerFields(0, jobID, email)
	log := p.Log.WithFields(fields)

	outcome := p.Pipeline.Run(ctx, email)

	if outcome.Retryable {
		log.Info("greylisted, deferring")
		env := model.JobEnvelope{JobID: jobID, Emails: []string{email}}
		if err := p.Queue.Defer(ctx, env, p.GreylistDelay); err != nil {
			log.WithError(err).Warn("failed to enqueue retry, persisting partial result instead")
			p.persist(ctx, jobID, outcome.Result)
		}
		return
	}

	p.persist(ctx, jobID, outcome.Result)
}

func (p *Pool) persist(ctx context.Context, jobID string, res model.VerificationResult) {
	if err := p.Store.InsertResult(ctx, jobID, res); err != nil {
		p.Log.WithError(err).WithField("job", jobID).Warn("failed to persist result")
	}
	if err := p.Store.AdvanceJob(ctx, jobID); err != nil {
		p.Log.WithError(err).WithField("job", jobID).Warn("failed to advance job progress")
	}
	if p.Rep != nil {
		if err := p.Rep.Record(ctx, res.Domain, res.Status); err != nil {
			p.Log.WithError(err).WithField("domain", res.Domain).Debug("failed to record reputation")
		}
	}

	metrics.VerificationsTotal.WithLabelValues(string(res.Status)).Inc()

	p.Log.WithFields(logging.WorkerFields(0, jobID, res.Email)).
		WithField("status", res.Status).WithField("score", res.Score).
		Info("verification complete")
}

// RunPoolGaugeRefresh periodically syncs the smtp_pool_idle_connections
// gauge from the pool's actual idle lists.
func RunPoolGaugeRefresh(ctx context.Context, pool *smtppool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, host := range pool.Hosts() {
				metrics.PoolIdleConnections.WithLabelValues(host).Set(float64(pool.IdleCount(host)))
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunRetrySweeper periodically promotes ready retry-queue entries back onto
// the main queue on a fixed interval.
func RunRetrySweeper(ctx context.Context, q *queue.Queue, interval time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if main, retry, err := q.Depths(ctx); err == nil {
				metrics.QueueDepth.Set(float64(main))
				metrics.RetryQueueDepth.Set(float64(retry))
			}

			n, err := q.PromoteReady(ctx)
			if err != nil {
				log.WithError(err).Warn("retry sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("promoted retry-queue entries")
			}
		case <-ctx.Done():
			return
		}
	}
}
