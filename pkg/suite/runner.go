package suite

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/runtime"
)

// CaseResult is the outcome of one case.
type CaseResult struct {
	Case    Case
	Passed  bool
	Got     string // value, or error message
	Message string // why the case failed
}

// Report is the outcome of running a suite.
type Report struct {
	Suite    string
	Results  []CaseResult
	Passed   int
	Failed   int
	Duration time.Duration
}

// OK reports whether every case passed.
func (r *Report) OK() bool { return r.Failed == 0 }

// Write prints one line per case followed by a summary.
func (r *Report) Write(w io.Writer) error {
	for _, res := range r.Results {
		var err error
		if res.Passed {
			_, err = fmt.Fprintf(w, "PASS  %s\n", res.Case.Label())
		} else {
			_, err = fmt.Fprintf(w, "FAIL  %s (line %d): %s\n", res.Case.Label(), res.Case.Line, res.Message)
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s: %d passed, %d failed\n", r.Suite, r.Passed, r.Failed)
	return err
}

// Runner checks suites against an Engine.
type Runner struct {
	engine *runtime.Engine
}

// NewRunner creates a runner.
func NewRunner(engine *runtime.Engine) *Runner {
	return &Runner{engine: engine}
}

// Run executes every case in order. A failing case never stops the run;
// a cancelled context does.
func (r *Runner) Run(ctx context.Context, s *Suite) (*Report, error) {
	start := time.Now()
	ctx = runtime.WithSurface(ctx, "suite")

	report := &Report{Suite: s.Name}
	for _, c := range s.Cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := r.runCase(ctx, c)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	out := CaseResult{Case: c}
	res, err := r.engine.Run(ctx, c.Expr)

	if err != nil {
		out.Got = err.Error()
		switch {
		case c.WantError == "":
			out.Message = fmt.Sprintf("unexpected error: %v", err)
		case !matchesError(c.WantError, err):
			out.Message = fmt.Sprintf("want error %s, got %s error %s: %v",
				c.WantError, expr.Stage(err), expr.KindOf(err), err)
		default:
			out.Passed = true
		}
		return out
	}

	out.Got = res.Value.String()
	if c.WantError != "" {
		out.Message = fmt.Sprintf("want error %s, got %s", c.WantError, out.Got)
		return out
	}
	if !res.Value.Identical(*c.Want) {
		out.Message = fmt.Sprintf("want %s %s, got %s %s",
			c.Want.Type(), c.Want, res.Value.Type(), res.Value)
		return out
	}
	if c.WantAST != "" {
		if got := expr.Format(res.AST); got != c.WantAST {
			out.Message = fmt.Sprintf("want ast %s, got %s", c.WantAST, got)
			return out
		}
	}
	out.Passed = true
	return out
}

// matchesError reports whether want names err's kind or stage.
func matchesError(want string, err error) bool {
	return strings.EqualFold(want, expr.KindOf(err)) || strings.EqualFold(want, expr.Stage(err))
}
