package observability

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns the SDK meter and tracer providers installed as the OTel
// globals. Metrics are pulled on demand with Snapshot. Finished spans are
// written to the logger at debug level.
type Telemetry struct {
	reader *sdkmetric.ManualReader
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
	logger *slog.Logger
}

// SetupTelemetry creates SDK providers and installs them as the global meter
// and tracer providers. Call Shutdown on exit.
func SetupTelemetry(logger *slog.Logger) *Telemetry {
	reader := sdkmetric.NewManualReader()
	t := &Telemetry{
		reader: reader,
		meters: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		traces: sdktrace.NewTracerProvider(sdktrace.WithBatcher(&logSpanExporter{logger: logger})),
		logger: logger,
	}

	otel.SetMeterProvider(t.meters)
	otel.SetTracerProvider(t.traces)
	return t
}

// Metrics returns a MetricsRecorder bound to t's meter provider, or
// NoopMetrics when t is nil.
func (t *Telemetry) Metrics() MetricsRecorder {
	if t == nil {
		return NoopMetrics{}
	}
	m, err := newMeterMetrics(t.meters.Meter("calc"))
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// Spans returns a SpanManager bound to t's tracer provider, or
// NoopSpanManager when t is nil.
func (t *Telemetry) Spans() SpanManager {
	if t == nil {
		return NoopSpanManager{}
	}
	return &otelSpanManager{tracer: t.traces.Tracer("calc")}
}

// MetricPoint is one data point. Value is the running total of a counter or
// the sum of a histogram; Count is set for histograms only.
type MetricPoint struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      float64           `json:"value"`
	Count      uint64            `json:"count,omitempty"`
}

// MetricSnapshot is the current state of one instrument.
type MetricSnapshot struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Unit        string        `json:"unit,omitempty"`
	Points      []MetricPoint `json:"points"`
}

// Snapshot collects every instrument, sorted by name.
func (t *Telemetry) Snapshot(ctx context.Context) ([]MetricSnapshot, error) {
	if t == nil {
		return nil, nil
	}

	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	var out []MetricSnapshot
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out = append(out, MetricSnapshot{
				Name:        m.Name,
				Description: m.Description,
				Unit:        m.Unit,
				Points:      metricPoints(m.Data),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func metricPoints(data metricdata.Aggregation) []MetricPoint {
	var points []MetricPoint
	switch d := data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range d.DataPoints {
			points = append(points, MetricPoint{Attributes: attrMap(dp.Attributes), Value: float64(dp.Value)})
		}
	case metricdata.Sum[float64]:
		for _, dp := range d.DataPoints {
			points = append(points, MetricPoint{Attributes: attrMap(dp.Attributes), Value: dp.Value})
		}
	case metricdata.Histogram[int64]:
		for _, dp := range d.DataPoints {
			points = append(points, MetricPoint{Attributes: attrMap(dp.Attributes), Value: float64(dp.Sum), Count: dp.Count})
		}
	case metricdata.Histogram[float64]:
		for _, dp := range d.DataPoints {
			points = append(points, MetricPoint{Attributes: attrMap(dp.Attributes), Value: dp.Sum, Count: dp.Count})
		}
	}
	return points
}

func attrMap(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	m := make(map[string]string, set.Len())
	for _, kv := range set.ToSlice() {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

// Shutdown logs the final metric values at debug level, flushes pending
// spans and shuts both providers down.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	if t.logger != nil {
		if metrics, err := t.Snapshot(ctx); err == nil {
			for _, m := range metrics {
				for _, p := range m.Points {
					t.logger.Debug("metric",
						slog.String("name", m.Name),
						slog.Any("attributes", p.Attributes),
						slog.Float64("value", p.Value),
						slog.Uint64("count", p.Count),
					)
				}
			}
		}
	}

	return errors.Join(t.traces.Shutdown(ctx), t.meters.Shutdown(ctx))
}

// logSpanExporter writes finished spans to a logger.
type logSpanExporter struct {
	logger *slog.Logger
}

var _ sdktrace.SpanExporter = (*logSpanExporter)(nil)

func (e *logSpanExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.logger == nil {
		return nil
	}
	for _, s := range spans {
		e.logger.Debug("span",
			slog.String("name", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.String("span_id", s.SpanContext().SpanID().String()),
			slog.String("parent_id", s.Parent().SpanID().String()),
			slog.String("status", s.Status().Code.String()),
			slog.Int("events", len(s.Events())),
			slog.Float64("duration_ms", Millis(s.EndTime().Sub(s.StartTime()))),
		)
	}
	return nil
}

func (e *logSpanExporter) Shutdown(context.Context) error {
	return nil
}
