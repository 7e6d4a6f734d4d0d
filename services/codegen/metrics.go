// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "aleutian.ticketsmith.codegen"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	metricsOnce sync.Once

	runCounter        metric.Int64Counter
	runDuration       metric.Float64Histogram
	tokenCounter      metric.Int64Counter
	retryCounter      metric.Int64Counter
	transitionCounter metric.Int64Counter
)

// initMetrics creates the pipeline instruments. Creation errors leave the
// corresponding instrument nil and recording becomes a no-op.
func initMetrics() {
	metricsOnce.Do(func() {
		runCounter, _ = meter.Int64Counter("codegen.runs",
			metric.WithDescription("Completed generation runs by outcome"))
		runDuration, _ = meter.Float64Histogram("codegen.run.duration",
			metric.WithDescription("End-to-end run duration in seconds"),
			metric.WithUnit("s"))
		tokenCounter, _ = meter.Int64Counter("codegen.tokens",
			metric.WithDescription("LLM tokens consumed by provider"))
		retryCounter, _ = meter.Int64Counter("codegen.retries",
			metric.WithDescription("Provider retries by failure kind"))
		transitionCounter, _ = meter.Int64Counter("codegen.state.transitions",
			metric.WithDescription("Run state transitions"))
	})
}

func recordRun(ctx context.Context, success bool, seconds float64) {
	if runCounter == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	runCounter.Add(ctx, 1, attrs)
	runDuration.Record(ctx, seconds, attrs)
}

func recordTokens(ctx context.Context, provider string, tokens int) {
	if tokenCounter == nil || tokens <= 0 {
		return
	}
	tokenCounter.Add(ctx, int64(tokens), metric.WithAttributes(attribute.String("provider", provider)))
}

func recordRetry(ctx context.Context, kind string) {
	if retryCounter == nil {
		return
	}
	retryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordTransition(ctx context.Context, from, to State) {
	if transitionCounter == nil {
		return
	}
	transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to))))
}

// startSpan opens a pipeline stage span.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}
