// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for permission resolution.
var (
	// queryDuration tracks the latency of Query() calls, including tree
	// builds on cache misses.
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "permtree_query_duration_seconds",
		Help:    "Histogram of permission query latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// queries counts queries by resolved state ("allow", "deny",
	// "undefined") or "error" when the actor's tree could not be built.
	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permtree_queries_total",
		Help: "Total number of permission queries",
	}, []string{"outcome"})

	// cachedTrees reports how many actors currently have a flattened
	// tree cached.
	cachedTrees = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "permtree_cached_trees",
		Help: "Number of cached per-actor permission trees",
	})
)

// recordQuery records metrics for one completed query.
func recordQuery(duration time.Duration, outcome string) {
	queryDuration.Observe(duration.Seconds())
	queries.WithLabelValues(outcome).Inc()
}
