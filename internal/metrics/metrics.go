// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package metrics exposes Prometheus instrumentation for:
//   - upstream catalog calls (latency, errors, circuit breaker state)
//   - content store operations and hit ratio
//   - feed pipeline durations and row/candidate counts
//   - API endpoint latency and throughput
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog upstream metrics

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Duration of upstream catalog API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CatalogRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_request_errors_total",
			Help: "Total upstream catalog call failures, swallowed at the client boundary",
		},
		[]string{"operation", "reason"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Content store metrics

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_store_operations_total",
			Help: "Total content store operations",
		},
		[]string{"operation", "result"},
	)

	StoreHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_store_hits_total",
			Help: "Total content store lookups that found a cached record",
		},
	)

	StoreMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_store_misses_total",
			Help: "Total content store lookups that missed (cold start path)",
		},
	)

	// Feed pipeline metrics

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_pipeline_duration_seconds",
			Help:    "Duration of a single feed pipeline run in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"pipeline"},
	)

	PipelineCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_pipeline_candidates",
			Help:    "Number of candidates a pipeline returned",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"pipeline"},
	)

	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_pipeline_failures_total",
			Help: "Total pipeline runs that failed or panicked and were dropped",
		},
		[]string{"pipeline"},
	)

	GeneratorCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_generator_candidates_total",
			Help: "Total candidates accepted per generator",
		},
		[]string{"generator"},
	)

	GeneratorPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_generator_panics_total",
			Help: "Total generator fetches that panicked and degraded to zero candidates",
		},
		[]string{"generator"},
	)

	FeedFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_fallback_rows_total",
			Help: "Total composed feeds that degraded to the generic trending row",
		},
	)

	// API endpoint metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)
