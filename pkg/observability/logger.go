// Package observability provides the logging, metrics and tracing used by
// the calculator surfaces.
//
// Logging uses log/slog; metrics and tracing use OpenTelemetry through the
// global providers. Every recorder has a no-op implementation, and every
// log helper accepts a nil logger.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Log output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel converts a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the given format at the given level.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want %s or %s)", format, FormatText, FormatJSON)
	}
}

// LogEvaluation logs a successful evaluation at debug level.
func LogEvaluation(logger *slog.Logger, input, result string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("expression evaluated",
		slog.String("input", input),
		slog.String("result", result),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogEvaluationError logs a rejected expression at debug level. The
// surfaces report the error to the user themselves.
func LogEvaluationError(logger *slog.Logger, input, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Debug("expression rejected",
		slog.String("input", input),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogServerStart logs that a listener is up.
func LogServerStart(logger *slog.Logger, kind, addr string) {
	if logger == nil {
		return
	}
	logger.Info("server listening",
		slog.String("server", kind),
		slog.String("addr", addr),
	)
}

// ParserTrace returns a parser trace hook that writes one debug record per
// grammar rule entered. It returns nil for a nil logger so callers can pass
// the result straight to the parser.
func ParserTrace(logger *slog.Logger) func(rule string, depth int) {
	if logger == nil {
		return nil
	}
	return func(rule string, depth int) {
		logger.Debug("parse rule",
			slog.String("rule", rule),
			slog.Int("depth", depth),
		)
	}
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// Millis converts d to fractional milliseconds for log fields.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
