package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropcast_upstream_calls_total",
			Help: "Total calls to upstream data providers",
		},
		[]string{"provider", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cropcast_upstream_latency_seconds",
			Help:    "Upstream provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropcast_predictions_total",
			Help: "Total yield model predictions served",
		},
		[]string{"kind"}, // "forecast" or "whatif"
	)

	FallbackYieldTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cropcast_fallback_yield_total",
			Help: "Predictions where the per-crop fallback yield replaced a degenerate model output",
		},
	)

	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropcast_cache_hits_total",
			Help: "Summary cache hits by provider",
		},
		[]string{"provider"},
	)
)
