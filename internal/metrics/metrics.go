// Package metrics exposes the module's Prometheus collectors. Everything is
// registered on the default registry; cmd/server serves it on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContributionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buildcrew",
		Name:      "contributions_accepted_total",
		Help:      "Quantity units accepted across all contributions.",
	})

	ContributionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "buildcrew",
		Name:      "contribution_conflicts_total",
		Help:      "Contributions rejected with a conflict, by reason.",
	}, []string{"reason"})

	ContributeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "buildcrew",
		Name:      "contribute_duration_seconds",
		Help:      "End-to-end latency of contribute calls.",
		Buckets:   prometheus.DefBuckets,
	})

	ResolverCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buildcrew",
		Name:      "resolver_cache_hits_total",
		Help:      "Resolver results served from cache.",
	})

	ResolverCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buildcrew",
		Name:      "resolver_cache_misses_total",
		Help:      "Resolver results recomputed after a cache miss.",
	})
)
