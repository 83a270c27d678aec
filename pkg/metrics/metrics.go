package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline decision counters. Labels stay low-cardinality: the check name
// that rejected the request, never the client identity.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entropygate_requests_total",
		Help: "HTTP requests by method, path and status class.",
	}, []string{"method", "path", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "entropygate_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	PipelineRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entropygate_pipeline_rejections_total",
		Help: "Security pipeline rejections by check.",
	}, []string{"check"})

	RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entropygate_ratelimit_hits_total",
		Help: "Rate limit rejections by policy.",
	}, []string{"policy"})

	EntropyFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entropygate_entropy_fallbacks_total",
		Help: "Generations served from the pseudo-random fallback.",
	})
)
