package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records calculator metrics.
// Use Telemetry.Metrics() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEvaluation records one pipeline run. surface names the caller
	// (repl, cli, http, grpc, suite).
	RecordEvaluation(ctx context.Context, surface string, duration time.Duration, err error)

	// RecordFailure records a rejected expression by stage and error kind.
	RecordFailure(ctx context.Context, stage, kind string)

	// RecordTokens records the token count of a lexed expression.
	RecordTokens(ctx context.Context, count int)
}

type otelMetrics struct {
	evaluations metric.Int64Counter
	latency     metric.Float64Histogram
	failures    metric.Int64Counter
	tokens      metric.Int64Histogram
}

// newMeterMetrics creates the calculator instruments on meter.
func newMeterMetrics(meter metric.Meter) (*otelMetrics, error) {
	evaluations, err := meter.Int64Counter("calc.evaluations",
		metric.WithDescription("Number of expressions run through the pipeline"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("calc.evaluation.latency_ms",
		metric.WithDescription("Pipeline latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("calc.failures",
		metric.WithDescription("Number of rejected expressions"),
	)
	if err != nil {
		return nil, err
	}

	tokens, err := meter.Int64Histogram("calc.expression.tokens",
		metric.WithDescription("Tokens per lexed expression"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		evaluations: evaluations,
		latency:     latency,
		failures:    failures,
		tokens:      tokens,
	}, nil
}

func (m *otelMetrics) RecordEvaluation(ctx context.Context, surface string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("surface", surface),
		attribute.Bool("success", err == nil),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.latency.Record(ctx, Millis(duration), attrs)
}

func (m *otelMetrics) RecordFailure(ctx context.Context, stage, kind string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("kind", kind),
	))
}

func (m *otelMetrics) RecordTokens(ctx context.Context, count int) {
	m.tokens.Record(ctx, int64(count))
}
