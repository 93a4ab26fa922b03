// Package metrics exposes the Prometheus counters and gauges the worker and
// API server update as they run: queue depth, breaker state, pool
// utilization, and per-status verification counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// VerificationsTotal counts completed verifications by terminal status.
	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailcheck",
		Name:      "verifications_total",
		Help:      "Total verifications completed, labeled by terminal status.",
	}, []string{"status"})

	// QueueDepth reports the current length of the main job queue.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mailcheck",
		Name:      "queue_depth",
		Help:      "Number of envelopes currently queued for processing.",
	})

	// RetryQueueDepth reports the current size of the greylist retry ZSET.
	RetryQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mailcheck",
		Name:      "retry_queue_depth",
		Help:      "Number of envelopes waiting in the greylist retry queue.",
	})

	// BreakerOpen reports whether the circuit breaker for a given MX host is
	// currently tripped (1) or closed (0).
	BreakerOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mailcheck",
		Name:      "breaker_open",
		Help:      "1 if the circuit breaker for this MX host is open.",
	}, []string{"mx_host"})

	// PoolIdleConnections reports idle SMTP connections cached per host.
	PoolIdleConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mailcheck",
		Name:      "smtp_pool_idle_connections",
		Help:      "Idle SMTP connections currently cached per host.",
	}, []string{"host"})
)

func init() {
	prometheus.MustRegister(VerificationsTotal, QueueDepth, RetryQueueDepth, BreakerOpen, PoolIdleConnections)
}
