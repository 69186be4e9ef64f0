// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package metrics defines the Prometheus instrumentation for Watchpost.
// All collectors are registered on the default registry via promauto and
// exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "watchpost"

var (
	// SessionAssignments counts assign calls by outcome:
	// assigned, duplicate, retry.
	SessionAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_assignments_total",
		Help:      "Session assignment outcomes by result",
	}, []string{"outcome"})

	// SessionsCreated counts new watch sessions.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Watch sessions created",
	})

	// SessionsClosed counts session closures by reason: gap, ended, sweep.
	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_closed_total",
		Help:      "Watch sessions closed by reason",
	}, []string{"reason"})

	// EventsIngested counts appended watch events by type.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_ingested_total",
		Help:      "Watch events appended to the store by event type",
	}, []string{"event_type"})

	// HTTPRequestDuration tracks request latency per route and status class.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by route, method, and status",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"route", "method", "status"})

	// QueryCacheHits and QueryCacheMisses track the rollup response cache.
	QueryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_cache_hits_total",
		Help:      "Rollup query cache hits",
	})
	QueryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_cache_misses_total",
		Help:      "Rollup query cache misses",
	})

	// SweepRuns counts background sweeper passes.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Stale-session sweeper passes",
	})
)
