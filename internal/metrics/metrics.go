// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PromptOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptguild",
			Name:      "prompt_operations_total",
			Help:      "Prompt repository operations by operation, scope and outcome code.",
		},
		[]string{"op", "scope", "code"},
	)

	GuildOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptguild",
			Name:      "guild_operations_total",
			Help:      "Guild repository operations by operation and outcome code.",
		},
		[]string{"op", "code"},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "promptguild",
			Name:      "store_transaction_retries_total",
			Help:      "Optimistic transactions re-run after a conflict.",
		},
	)

	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptguild",
			Name:      "ai_requests_total",
			Help:      "AI backend requests by kind and final state.",
		},
		[]string{"kind", "state"},
	)

	AIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "promptguild",
			Name:      "ai_request_duration_seconds",
			Help:      "Latency of AI backend calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"kind"},
	)

	LiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "promptguild",
			Name:      "live_subscriptions",
			Help:      "Open live query subscriptions.",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
