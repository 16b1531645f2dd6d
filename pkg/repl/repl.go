// Package repl implements the interactive read-eval-print loop.
//
// Each input line is one expression. The loop prints "= <value>" or
// "error: <message>" and keeps going; only end of input or :quit stops it.
// Lines starting with ':' are commands, see :help.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/runtime"
)

// DefaultPrompt is printed before each line is read.
const DefaultPrompt = ">>> "

const helpText = `Enter an expression such as 1 + 2 * 3 or (1 < 2) && !0.
Commands:
  :ast      toggle printing the parsed expression
  :tokens   toggle printing the token stream
  :help     show this help
  :quit     exit (also :q, or end of input)
`

// REPL reads expressions from in and writes results to out.
type REPL struct {
	engine *runtime.Engine
	in     io.Reader
	out    io.Writer

	prompt     string
	banner     string
	showAST    bool
	showTokens bool
}

// Option configures a REPL.
type Option func(*REPL)

// WithPrompt sets the prompt. An empty prompt prints nothing.
func WithPrompt(p string) Option {
	return func(r *REPL) { r.prompt = p }
}

// WithBanner sets a line printed once at startup.
func WithBanner(b string) Option {
	return func(r *REPL) { r.banner = b }
}

// WithShowAST sets the initial :ast state.
func WithShowAST(on bool) Option {
	return func(r *REPL) { r.showAST = on }
}

// WithShowTokens sets the initial :tokens state.
func WithShowTokens(on bool) Option {
	return func(r *REPL) { r.showTokens = on }
}

// New creates a REPL.
func New(engine *runtime.Engine, in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		engine: engine,
		in:     in,
		out:    out,
		prompt: DefaultPrompt,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loops until end of input, :quit, or ctx is done. Bad expressions are
// reported and never end the loop. The returned error is nil on a normal
// exit and otherwise comes from reading input or ctx.
func (r *REPL) Run(ctx context.Context) error {
	ctx = runtime.WithSurface(ctx, "repl")
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	if r.banner != "" {
		fmt.Fprintln(r.out, r.banner)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, r.prompt)

		if !scanner.Scan() {
			if r.prompt != "" {
				fmt.Fprintln(r.out)
			}
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			if quit := r.command(line); quit {
				return nil
			}
		default:
			r.eval(ctx, line)
		}
	}
}

// command runs a ':' command and reports whether the loop should stop.
func (r *REPL) command(line string) bool {
	switch strings.ToLower(line) {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h", ":?":
		fmt.Fprint(r.out, helpText)
	case ":ast":
		r.showAST = !r.showAST
		fmt.Fprintf(r.out, "ast display %s\n", onOff(r.showAST))
	case ":tokens":
		r.showTokens = !r.showTokens
		fmt.Fprintf(r.out, "token display %s\n", onOff(r.showTokens))
	default:
		fmt.Fprintf(r.out, "error: unknown command %s (try :help)\n", line)
	}
	return false
}

func (r *REPL) eval(ctx context.Context, line string) {
	res, err := r.engine.Run(ctx, line)
	if err != nil {
		// Parse and eval errors still come with the tokens.
		if r.showTokens && res != nil && len(res.Tokens) > 0 {
			r.printTokens(res.Tokens)
		}
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}

	if r.showTokens {
		r.printTokens(res.Tokens)
	}
	if r.showAST {
		fmt.Fprintln(r.out, expr.Format(res.AST))
	}
	fmt.Fprintf(r.out, "= %s\n", res.Value)
}

func (r *REPL) printTokens(tokens []expr.Token) {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.String()
	}
	fmt.Fprintf(r.out, "tokens: %s\n", strings.Join(parts, " "))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
