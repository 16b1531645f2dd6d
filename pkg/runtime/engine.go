// Package runtime runs expression text through the lex, parse and eval
// pipeline with limits, logging, tracing and metrics applied. Every surface
// (REPL, CLI, suites, HTTP, gRPC) goes through an Engine.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/observability"
	"github.com/lemonberrylabs/calc/pkg/types"
)

// Pipeline stage names, as reported by expr.Stage.
const (
	StageLex   = "lex"
	StageParse = "parse"
	StageEval  = "eval"
)

// Result is the outcome of one pipeline run. Fields for stages that were
// not run, or that failed, are left zero. A failed run still returns the
// Result of the stages before the failure, such as the tokens of an
// expression that did not parse.
type Result struct {
	Input    string
	Tokens   []expr.Token
	AST      expr.Node
	Value    types.Value
	Duration time.Duration
}

// Engine runs expressions. It is immutable after NewEngine and safe for
// concurrent use.
type Engine struct {
	maxDepth    int
	maxLength   int
	traceParser bool

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the parser's nesting limit.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithMaxLength sets the input length limit in characters.
func WithMaxLength(n int) Option {
	return func(e *Engine) { e.maxLength = n }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithParserTrace logs every grammar rule the parser enters at debug level.
func WithParserTrace(enabled bool) Option {
	return func(e *Engine) { e.traceParser = enabled }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(e *Engine) {
		if s != nil {
			e.spans = s
		}
	}
}

// NewEngine creates an engine. Without options it uses the parser's default
// limits and records nothing.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxDepth:  expr.DefaultMaxDepth,
		maxLength: expr.DefaultMaxLength,
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// contextKey is an unexported type for context keys defined in this package.
type contextKey string

const surfaceKey contextKey = "surface"

// WithSurface tags ctx with the name of the calling surface, used as a
// metric attribute.
func WithSurface(ctx context.Context, surface string) context.Context {
	return context.WithValue(ctx, surfaceKey, surface)
}

// SurfaceFromContext returns the surface stored by WithSurface, or "unknown".
func SurfaceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(surfaceKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// Run lexes, parses and evaluates text.
func (e *Engine) Run(ctx context.Context, text string) (*Result, error) {
	return e.run(ctx, text, StageEval)
}

// Parse lexes and parses text without evaluating it.
func (e *Engine) Parse(ctx context.Context, text string) (*Result, error) {
	return e.run(ctx, text, StageParse)
}

// Tokenize lexes text.
func (e *Engine) Tokenize(ctx context.Context, text string) (*Result, error) {
	return e.run(ctx, text, StageLex)
}

func (e *Engine) run(ctx context.Context, text, until string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elapsed := observability.TimedOperation()
	ctx, span := e.spans.StartEvaluationSpan(ctx, text)
	res, err := e.pipeline(ctx, text, until)
	e.spans.EndSpanWithError(span, err)

	d := elapsed()
	res.Duration = d
	e.metrics.RecordEvaluation(ctx, SurfaceFromContext(ctx), d, err)
	if err != nil {
		stage := expr.Stage(err)
		e.metrics.RecordFailure(ctx, stage, expr.KindOf(err))
		observability.LogEvaluationError(e.logger, text, stage, err)
		return res, err
	}

	if until == StageEval {
		observability.LogEvaluation(e.logger, text, res.Value.String(), observability.Millis(d))
	}
	return res, nil
}

func (e *Engine) pipeline(ctx context.Context, text, until string) (*Result, error) {
	res := &Result{Input: text}
	opts := e.parserOptions()

	if err := expr.CheckLength(text, opts...); err != nil {
		return res, err
	}

	err := e.stage(ctx, StageLex, func() error {
		tokens, err := expr.Tokenize(text)
		if err == nil {
			res.Tokens = tokens
		}
		return err
	})
	if err != nil {
		return res, err
	}
	e.metrics.RecordTokens(ctx, len(res.Tokens))
	e.spans.AddSpanEvent(ctx, "tokenized", attribute.Int("calc.tokens", len(res.Tokens)))
	if until == StageLex {
		return res, nil
	}

	err = e.stage(ctx, StageParse, func() error {
		node, err := expr.Parse(res.Tokens, opts...)
		if err == nil {
			res.AST = node
		}
		return err
	})
	if err != nil {
		return res, err
	}
	if until == StageParse {
		return res, nil
	}

	err = e.stage(ctx, StageEval, func() error {
		v, err := expr.Evaluate(res.AST)
		if err == nil {
			res.Value = v
		}
		return err
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

func (e *Engine) stage(ctx context.Context, name string, fn func() error) error {
	_, span := e.spans.StartStageSpan(ctx, name)
	err := fn()
	e.spans.EndSpanWithError(span, err)
	return err
}

func (e *Engine) parserOptions() []expr.Option {
	opts := []expr.Option{
		expr.WithMaxDepth(e.maxDepth),
		expr.WithMaxLength(e.maxLength),
	}
	if e.traceParser {
		opts = append(opts, expr.WithTrace(observability.ParserTrace(e.logger)))
	}
	return opts
}
