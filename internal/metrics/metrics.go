package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quotachat"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Ledger metrics
var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Total number of chat messages by path (free or paid) and outcome",
		},
		[]string{"path", "status"},
	)

	QuotaExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_exceeded_total",
			Help:      "Total number of messages refused because a quota was exhausted",
		},
		[]string{"kind"},
	)

	AnswerGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_generation_duration_seconds",
			Help:      "Answer generation latency distribution",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	SubscriptionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_created_total",
			Help:      "Total number of subscriptions created",
		},
		[]string{"tier", "billing_cycle"},
	)

	SubscriptionsCanceled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_canceled_total",
			Help:      "Total number of subscription cancellations",
		},
	)

	UsageRecordsReset = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_records_reset_total",
			Help:      "Total number of usage records reset",
		},
		[]string{"mode"}, // "lazy" or "bulk"
	)
)
