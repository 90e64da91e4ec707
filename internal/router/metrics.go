package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "support_updates",
	Help: "Number of Telegram updates received, by classified kind",
}, []string{"kind"})

var handlerFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "support_handler_failures",
	Help: "Number of handler failures contained by the router",
}, []string{"kind", "reason"})

var duplicateCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "support_duplicate_updates",
	Help: "Number of redelivered updates skipped",
})

var rateLimitedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "support_rate_limited_updates",
	Help: "Number of updates dropped by the per-user rate limit",
}, []string{"kind"})

var handlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "support_handler_duration_sec",
	Help:    "Duration of update handling",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
}, []string{"kind"})
