// Package api implements the REST API over the calculator engine and the
// evaluation history.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/observability"
	"github.com/lemonberrylabs/calc/pkg/runtime"
	"github.com/lemonberrylabs/calc/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	app    *fiber.App
	engine *runtime.Engine
	store  *store.Store
	logger *slog.Logger
}

// New creates the API server. A nil logger disables request logging.
func New(engine *runtime.Engine, s *store.Store, logger *slog.Logger) *Server {
	srv := &Server{
		engine: engine,
		store:  s,
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             1 << 20,
		ErrorHandler:          srv.handleError,
	})

	app.Get("/healthz", srv.health)

	// Evaluations API
	app.Post("/v1/evaluations", srv.createEvaluation)
	app.Get("/v1/evaluations", srv.listEvaluations)
	app.Get("/v1/evaluations/:id", srv.getEvaluation)

	// Pipeline stages without recording
	app.Post("/v1/tokenize", srv.tokenize)
	app.Post("/v1/parse", srv.parse)

	srv.app = app
	return srv
}

// EnableMetrics serves the current values of t's instruments at
// GET /v1/metrics.
func (s *Server) EnableMetrics(t *observability.Telemetry) {
	s.app.Get("/v1/metrics", func(c *fiber.Ctx) error {
		metrics, err := t.Snapshot(c.UserContext())
		if err != nil {
			return err
		}
		if metrics == nil {
			metrics = []observability.MetricSnapshot{}
		}
		return c.JSON(fiber.Map{"metrics": metrics})
	})
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	observability.LogServerStart(s.logger, "http", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// errorJSON writes the {"error": {code, message, status}} envelope.
func errorJSON(c *fiber.Ctx, code int, status, message string, details ...fiber.Map) error {
	body := fiber.Map{
		"code":    code,
		"message": message,
		"status":  status,
	}
	if len(details) > 0 {
		body["details"] = details[0]
	}
	return c.Status(code).JSON(fiber.Map{"error": body})
}

// pipelineError reports a lex or parse failure from the stage endpoints.
func pipelineError(c *fiber.Ctx, err error) error {
	return errorJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), fiber.Map{
		"stage": expr.Stage(err),
		"kind":  expr.KindOf(err),
	})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	status := "INTERNAL"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch code {
		case http.StatusNotFound:
			status = "NOT_FOUND"
		case http.StatusMethodNotAllowed:
			status = "METHOD_NOT_ALLOWED"
		case http.StatusRequestEntityTooLarge:
			status = "INVALID_ARGUMENT"
		}
	}
	if code >= http.StatusInternalServerError && s.logger != nil {
		s.logger.Error("request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return errorJSON(c, code, status, err.Error())
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type expressionRequest struct {
	Expression string `json:"expression"`
}

func parseExpressionRequest(c *fiber.Ctx) (string, error) {
	var req expressionRequest
	if err := c.BodyParser(&req); err != nil {
		return "", fmt.Errorf("invalid request body: %v", err)
	}
	if strings.TrimSpace(req.Expression) == "" {
		return "", errors.New("expression is required")
	}
	return req.Expression, nil
}

// --- Evaluation Handlers ---

// createEvaluation runs an expression and records it. A bad expression is
// still a successful request: the record has state FAILED.
func (s *Server) createEvaluation(c *fiber.Ctx) error {
	text, err := parseExpressionRequest(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	}

	ctx := runtime.WithSurface(c.UserContext(), "http")
	res, runErr := s.engine.Run(ctx, text)
	if runErr != nil && expr.Stage(runErr) == "" {
		return errorJSON(c, http.StatusServiceUnavailable, "UNAVAILABLE", runErr.Error())
	}

	ev := s.store.Record(store.FromRun(text, "http", res, runErr))
	return c.Status(http.StatusOK).JSON(ev)
}

func (s *Server) getEvaluation(c *fiber.Ctx) error {
	ev, err := s.store.Get(c.Params("id"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	}
	return c.JSON(ev)
}

func (s *Server) listEvaluations(c *fiber.Ctx) error {
	pageSize := c.QueryInt("pageSize", 0)
	if pageSize < 0 {
		return errorJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", "pageSize must not be negative")
	}
	return c.JSON(fiber.Map{
		"evaluations": s.store.List(pageSize),
	})
}

// --- Stage Handlers ---

func (s *Server) tokenize(c *fiber.Ctx) error {
	text, err := parseExpressionRequest(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	}

	res, err := s.engine.Tokenize(runtime.WithSurface(c.UserContext(), "http"), text)
	if err != nil {
		return pipelineError(c, err)
	}

	tokens := make([]fiber.Map, len(res.Tokens))
	for i, tok := range res.Tokens {
		tokens[i] = tokenToJSON(tok)
	}
	return c.JSON(fiber.Map{"tokens": tokens})
}

func (s *Server) parse(c *fiber.Ctx) error {
	text, err := parseExpressionRequest(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	}

	res, err := s.engine.Parse(runtime.WithSurface(c.UserContext(), "http"), text)
	if err != nil {
		return pipelineError(c, err)
	}
	return c.JSON(fiber.Map{
		"ast":        expr.Format(res.AST),
		"tokenCount": len(res.Tokens),
	})
}

func tokenToJSON(tok expr.Token) fiber.Map {
	m := fiber.Map{
		"type":  tok.Type.String(),
		"value": tok.Value,
		"pos":   tok.Pos,
	}
	if tok.Type == expr.TokenNumber {
		m["number"] = tok.Num
	}
	return m
}
