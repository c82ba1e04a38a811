// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/workgraph/services/workgraph/graph"
)

var (
	tracer = otel.Tracer("workgraph.resolver")
	meter  = otel.Meter("workgraph.resolver")
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// resolutionsTotal counts resolutions.
	// Labels: strategy (staged, pushdown), outcome (ok, empty, timeout, error)
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workgraph",
		Subsystem: "resolver",
		Name:      "resolutions_total",
		Help:      "Workable-set resolutions by strategy and outcome",
	}, []string{"strategy", "outcome"})

	// resolutionDuration measures end-to-end resolution latency.
	resolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "workgraph",
		Subsystem: "resolver",
		Name:      "duration_seconds",
		Help:      "Workable-set resolution latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
	}, []string{"strategy"})

	// storeRoundTrips records store calls per resolution. Stays flat as the
	// graph grows.
	storeRoundTrips = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "workgraph",
		Subsystem: "resolver",
		Name:      "store_round_trips",
		Help:      "Store round-trips issued per resolution",
		Buckets:   []float64{1, 2, 3, 4, 5},
	}, []string{"strategy"})

	// workableSize records the size of each returned workable set.
	workableSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "workgraph",
		Subsystem: "resolver",
		Name:      "workable_size",
		Help:      "Number of workable actions returned",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"strategy"})
)

// =============================================================================
// OpenTelemetry Metrics
// =============================================================================

var (
	candidatesHist metric.Int64Histogram
	edgesCounter   metric.Int64Counter
	otelOnce       sync.Once
)

// initOtelMetrics creates the OTel instruments. Failures leave the
// instruments nil and recording becomes a no-op.
func initOtelMetrics() {
	otelOnce.Do(func() {
		var err error
		candidatesHist, err = meter.Int64Histogram("workgraph_resolver_candidates",
			metric.WithDescription("Incomplete actions loaded per staged resolution"),
		)
		if err != nil {
			candidatesHist = nil
		}
		edgesCounter, err = meter.Int64Counter("workgraph_resolver_edges_loaded_total",
			metric.WithDescription("Edges loaded by the staged strategy"),
		)
		if err != nil {
			edgesCounter = nil
		}
	})
}

func recordResolution(strategy Strategy, outcome string, seconds float64, trips, size int) {
	s := string(strategy)
	resolutionsTotal.WithLabelValues(s, outcome).Inc()
	resolutionDuration.WithLabelValues(s).Observe(seconds)
	if trips > 0 {
		storeRoundTrips.WithLabelValues(s).Observe(float64(trips))
	}
	if outcome == outcomeOK || outcome == outcomeEmpty {
		workableSize.WithLabelValues(s).Observe(float64(size))
	}
}

func recordIndexStats(ctx context.Context, policy string, st graph.Stats) {
	initOtelMetrics()
	attrs := metric.WithAttributes(attribute.String("policy", policy))
	if candidatesHist != nil {
		candidatesHist.Record(ctx, int64(st.Candidates), attrs)
	}
	if edgesCounter != nil {
		edgesCounter.Add(ctx, int64(st.DependencyEdges),
			metric.WithAttributes(attribute.String("policy", policy), attribute.String("kind", "dependency")))
		edgesCounter.Add(ctx, int64(st.CompositionEdges),
			metric.WithAttributes(attribute.String("policy", policy), attribute.String("kind", "composition")))
	}
}

const (
	outcomeOK      = "ok"
	outcomeEmpty   = "empty"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)
