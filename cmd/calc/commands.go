package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/calc/pkg/api"
	grpcapi "github.com/lemonberrylabs/calc/pkg/api/grpc"
	"github.com/lemonberrylabs/calc/pkg/config"
	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/observability"
	"github.com/lemonberrylabs/calc/pkg/repl"
	"github.com/lemonberrylabs/calc/pkg/runtime"
	"github.com/lemonberrylabs/calc/pkg/store"
	"github.com/lemonberrylabs/calc/pkg/suite"
	"github.com/lemonberrylabs/calc/web"
)

// errSuiteFailed is returned by `calc run` when any case fails. The report
// lists the failing cases.
var errSuiteFailed = errors.New("suite failed")

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	engine    *runtime.Engine
	telemetry *observability.Telemetry
}

// close flushes telemetry. It runs after the command, whether or not the
// command failed.
func (a *app) close() {
	if err := a.telemetry.Shutdown(context.Background()); err != nil && a.logger != nil {
		a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
	a.telemetry = nil
}

func newRootCmd(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:   "calc",
		Short: "Arithmetic and boolean expression calculator",
		Long: `calc evaluates expressions over numbers and booleans, such as
(1 + 2) * 3 >= 9 && !0. Without a subcommand it starts an interactive
read-eval-print loop.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: a.runREPL,
	}
	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("calc version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file, YAML or JSON (env CALC_CONFIG)")
	pf.String("log-level", "", "Log level: debug, info, warn, error (env CALC_LOG_LEVEL)")
	pf.String("log-format", "", "Log format: text or json (env CALC_LOG_FORMAT)")
	pf.Int("max-depth", 0, "Maximum expression nesting depth (env CALC_MAX_DEPTH)")
	pf.Int("max-length", 0, "Maximum expression length in characters (env CALC_MAX_LENGTH)")
	pf.Bool("trace-parser", false, "Log every grammar rule at debug level (env CALC_TRACE_PARSER)")
	pf.Bool("telemetry", false, "Record OpenTelemetry metrics and spans (env CALC_TELEMETRY)")

	root.Flags().String("prompt", "", "REPL prompt (env CALC_PROMPT)")
	root.Flags().Bool("show-ast", false, "Print the parsed expression before each result")
	root.Flags().Bool("show-tokens", false, "Print the token stream before each result")

	root.AddCommand(
		newEvalCmd(a),
		newParseCmd(a),
		newRunCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads the config, applies flag overrides and builds the engine.
func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("max-length") {
		cfg.MaxLength, _ = flags.GetInt("max-length")
	}
	if flags.Changed("trace-parser") {
		cfg.TraceParser, _ = flags.GetBool("trace-parser")
	}
	if flags.Changed("telemetry") {
		cfg.Telemetry.Enabled, _ = flags.GetBool("telemetry")
	}
	if flags.Changed("prompt") {
		cfg.Prompt, _ = flags.GetString("prompt")
	}
	if flags.Changed("show-ast") {
		cfg.ShowAST, _ = flags.GetBool("show-ast")
	}
	if flags.Changed("show-tokens") {
		cfg.ShowTokens, _ = flags.GetBool("show-tokens")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	if cfg.Telemetry.Enabled {
		a.telemetry = observability.SetupTelemetry(logger)
	}
	a.engine = runtime.NewEngine(
		runtime.WithMaxDepth(cfg.MaxDepth),
		runtime.WithMaxLength(cfg.MaxLength),
		runtime.WithLogger(logger),
		runtime.WithParserTrace(cfg.TraceParser),
		runtime.WithMetrics(a.telemetry.Metrics()),
		runtime.WithSpans(a.telemetry.Spans()),
	)
	return nil
}

func (a *app) runREPL(cmd *cobra.Command, _ []string) error {
	opts := []repl.Option{
		repl.WithPrompt(a.cfg.Prompt),
		repl.WithShowAST(a.cfg.ShowAST),
		repl.WithShowTokens(a.cfg.ShowTokens),
	}
	if a.cfg.Prompt != "" {
		opts = append(opts, repl.WithBanner("calc "+version+" (:help for commands)"))
	}
	return repl.New(a.engine, cmd.InOrStdin(), cmd.OutOrStdout(), opts...).Run(cmd.Context())
}

// --- eval ---

func newEvalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <expression>...",
		Short: "Evaluate one expression and print the result",
		Long: `Evaluate one expression. Arguments are joined with spaces, so
quoting the expression is optional unless the shell would interpret it.`,
		Example: `  calc eval '1 + 2 * 3'
  calc eval 10 / 4
  calc eval --json '(1 < 2) && !0'`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runEval,
	}
	cmd.Flags().Bool("ast", false, "Print the parsed expression before the result")
	cmd.Flags().Bool("json", false, "Print the evaluation record as JSON")
	return cmd
}

func (a *app) runEval(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	ctx := runtime.WithSurface(cmd.Context(), "cli")
	res, err := a.engine.Run(ctx, text)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(store.FromRun(text, "cli", res, err)); encErr != nil {
			return encErr
		}
		return err
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showAST, _ := cmd.Flags().GetBool("ast"); showAST {
		fmt.Fprintln(out, expr.Format(res.AST))
	}
	fmt.Fprintln(out, res.Value)
	return nil
}

// --- parse ---

func newParseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <expression>...",
		Short: "Parse an expression without evaluating it",
		Example: `  calc parse '1 + 2 * 3'
  calc parse --tree '-(1 + 2)'`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runParse,
	}
	cmd.Flags().Bool("tree", false, "Print the syntax tree as Go values")
	cmd.Flags().Bool("tokens", false, "Print the token stream")
	return cmd
}

func (a *app) runParse(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	res, err := a.engine.Parse(runtime.WithSurface(cmd.Context(), "cli"), text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showTokens, _ := cmd.Flags().GetBool("tokens"); showTokens {
		for _, tok := range res.Tokens {
			fmt.Fprintln(out, tok)
		}
	}
	if tree, _ := cmd.Flags().GetBool("tree"); tree {
		fmt.Fprintf(out, "%# v\n", pretty.Formatter(res.AST))
		return nil
	}
	fmt.Fprintln(out, expr.Format(res.AST))
	return nil
}

// --- run ---

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <suite.yaml>...",
		Short: "Check expression suites",
		Long: `Run one or more suite files. A suite is a YAML or JSON document:

  name: basics
  cases:
    - expr: 1 + 2 * 3
      want: 7
      ast: (1 + (2 * 3))
    - expr: 1 / 0
      error: DivisionByZero

The command fails if any case fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runSuites,
	}
}

func (a *app) runSuites(cmd *cobra.Command, args []string) error {
	runner := suite.NewRunner(a.engine)
	failed := false

	for _, path := range args {
		s, err := suite.ParseFile(path)
		if err != nil {
			return err
		}
		report, err := runner.Run(cmd.Context(), s)
		if err != nil {
			return err
		}
		if err := report.Write(cmd.OutOrStdout()); err != nil {
			return err
		}
		if !report.OK() {
			failed = true
		}
	}

	if failed {
		return errSuiteFailed
	}
	return nil
}

// --- serve ---

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, the gRPC service and the web UI",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env CALC_PORT)")
	cmd.Flags().Int("grpc-port", -1, "gRPC server port, 0 disables (default 8788, env CALC_GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env CALC_HOST)")
	cmd.Flags().Bool("no-ui", false, "Do not serve the web UI")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg := a.cfg
	flags := cmd.Flags()
	if v, _ := flags.GetInt("port"); v != 0 {
		cfg.Server.Port = v
	}
	if v, _ := flags.GetInt("grpc-port"); v >= 0 {
		cfg.Server.GRPCPort = v
	}
	if v, _ := flags.GetString("host"); v != "" {
		cfg.Server.Host = v
	}
	if v, _ := flags.GetBool("no-ui"); v {
		cfg.Server.WebUI = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s := store.New(cfg.Server.History)
	server := api.New(a.engine, s, a.logger)
	if a.telemetry != nil {
		server.EnableMetrics(a.telemetry)
	}

	if cfg.Server.WebUI {
		web.New(a.engine, s).Register(server.App())
	}

	var grpcServer *grpcapi.Server
	if addr := cfg.GRPCAddr(); addr != "" {
		grpcServer = grpcapi.New(a.engine, s, a.logger)
		go func() {
			if err := grpcServer.Serve(addr); err != nil {
				a.logger.Error("grpc server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		a.logger.Info("shutting down")
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if err := server.Shutdown(); err != nil {
			a.logger.Error("error during shutdown", slog.String("error", err.Error()))
		}
	}()

	return server.Listen(cfg.HTTPAddr())
}
