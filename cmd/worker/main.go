// Command worker is the email verification worker process: it drains
// JobEnvelopes from Redis, runs each address through the verification
// pipeline, and persists results to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/devyanshu/mailcheck/internal/batch"
	"github.com/devyanshu/mailcheck/internal/config"
	"github.com/devyanshu/mailcheck/internal/dnsresolve"
	"github.com/devyanshu/mailcheck/internal/infra"
	"github.com/devyanshu/mailcheck/internal/logging"
	"github.com/devyanshu/mailcheck/internal/queue"
	"github.com/devyanshu/mailcheck/internal/ratelimit"
	"github.com/devyanshu/mailcheck/internal/reputation"
	"github.com/devyanshu/mailcheck/internal/smtppool"
	"github.com/devyanshu/mailcheck/internal/smtpprobe"
	"github.com/devyanshu/mailcheck/internal/storage"
	"github.com/devyanshu/mailcheck/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	log.WithField("config", cfg.String()).Info("starting mailcheck worker")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer rdb.Close()

	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("failed to migrate schema")
	}

	q := queue.New(rdb)
	rep := reputation.New(rdb)

	infraLog := log.WithField("component", "infra")

	smtpPool := smtppool.New(smtppool.Config{
		MaxPerHost:     cfg.SMTPPoolSize,
		ConnectTimeout: cfg.SMTPTimeout,
	})
	smtpProber := smtpprobe.New(smtpprobe.Config{
		HeloHost: cfg.SMTPHeloDomain,
		MailFrom: "verifier@" + cfg.SMTPHeloDomain,
	})
	smtpProber.UsePool(smtpPool)

	pipeline := &worker.Pipeline{
		Resolver: dnsresolve.New(4096),
		Infra:    infra.New(infraLog),
		SMTP:     smtpProber,
		Pool:     smtpPool,
		Limiter:  ratelimit.NewTokenBucket(rdb, cfg.RateLimitCapacity, cfg.RateLimitRefill),
		Breaker:  ratelimit.NewBreaker(rdb, cfg.BreakerWindow, cfg.BreakerThreshold, cfg.BreakerOpenFor),
		Log:      log.WithField("component", "pipeline"),
	}

	workerPool := &worker.Pool{
		Pipeline:      pipeline,
		Queue:         q,
		Store:         store,
		Rep:           rep,
		Log:           log,
		Batcher:       batch.New(batch.DefaultBatchSize, batch.DefaultMaxWait),
		Concurrency:   cfg.WorkerCount,
		PollTimeout:   cfg.JobPollTimeout,
		GreylistDelay: cfg.GreylistDelay,
	}

	go worker.RunRetrySweeper(ctx, q, cfg.RetrySweepEvery, log)
	go worker.RunPoolGaugeRefresh(ctx, smtpPool, cfg.RetrySweepEvery)

	log.WithField("workers", cfg.WorkerCount).Info("worker pool ready, draining queue")
	workerPool.Run(ctx)

	log.Info("shutdown signal received, exiting")
}
