// Command apiserver is the thin HTTP submission boundary: it accepts job
// submissions and exposes job progress and Prometheus metrics. It never
// dials SMTP or touches DNS itself — cmd/worker does the verification work.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devyanshu/mailcheck/internal/apiserver"
	"github.com/devyanshu/mailcheck/internal/config"
	"github.com/devyanshu/mailcheck/internal/logging"
	"github.com/devyanshu/mailcheck/internal/queue"
	"github.com/devyanshu/mailcheck/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	log.WithField("config", cfg.String()).Info("starting mailcheck apiserver")

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
	srv := apiserver.New(q, store, log)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("apiserver listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("apiserver stopped unexpectedly")
	}

	log.Info("shutdown complete")
}
