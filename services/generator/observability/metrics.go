// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds the Prometheus metrics for the generator
// service HTTP surface.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

const subsystem = "ticketsmith"

// GeneratorMetrics aggregates the HTTP-level instruments.
type GeneratorMetrics struct {
	// RequestsTotal counts API requests by endpoint and outcome.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds observes end-to-end handler latency.
	RequestDurationSeconds *prometheus.HistogramVec

	// TokensTotal counts LLM tokens consumed by endpoint.
	TokensTotal *prometheus.CounterVec

	// GeneratedFilesTotal counts files produced by successful runs.
	GeneratedFilesTotal prometheus.Counter

	// TestRunsTotal counts executed test files by verdict.
	TestRunsTotal *prometheus.CounterVec
}

var (
	initOnce sync.Once
	metrics  *GeneratorMetrics
)

// InitMetrics registers the generator metrics with the default
// registry. Safe to call more than once; registration happens once.
func InitMetrics() *GeneratorMetrics {
	initOnce.Do(func() {
		metrics = &GeneratorMetrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: subsystem,
					Name:      "requests_total",
					Help:      "API requests by endpoint and outcome",
				},
				[]string{"endpoint", "outcome"},
			),
			RequestDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: subsystem,
					Name:      "request_duration_seconds",
					Help:      "Handler latency in seconds",
					Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
				},
				[]string{"endpoint"},
			),
			TokensTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: subsystem,
					Name:      "tokens_total",
					Help:      "LLM tokens consumed by endpoint",
				},
				[]string{"endpoint"},
			),
			GeneratedFilesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: subsystem,
					Name:      "generated_files_total",
					Help:      "Files produced by successful generation runs",
				},
			),
			TestRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: subsystem,
					Name:      "test_runs_total",
					Help:      "Executed test files by verdict",
				},
				[]string{"verdict"},
			),
		}
	})
	return metrics
}

// Metrics returns the registered instruments, or nil before InitMetrics.
func Metrics() *GeneratorMetrics {
	return metrics
}
