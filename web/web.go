// Package web provides the embedded web UI for the calculator.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/runtime"
	"github.com/lemonberrylabs/calc/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// recentLimit is the number of evaluations shown on the history page.
const recentLimit = 50

// Handler serves the web UI pages.
type Handler struct {
	engine  *runtime.Engine
	store   *store.Store
	funcMap template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      any
}

// New creates a new web UI handler.
func New(engine *runtime.Engine, s *store.Store) *Handler {
	return &Handler{
		engine: engine,
		store:  s,
		funcMap: template.FuncMap{
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"formatMs":   formatMs,
			"stateClass": stateClass,
			"stateIcon":  stateIcon,
			"truncate":   truncate,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data any) error {
	// Each page is parsed with the layout on its own so define blocks do
	// not collide across pages.
	tmpl := template.Must(
		template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page),
	)

	pd := pageData{
		NavActive: navActive,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.history)
	app.Post("/ui/evaluate", h.evaluate)
	app.Get("/ui/evaluations/:id", h.evaluationDetail)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type historyContent struct {
	Evaluations    []*store.Evaluation
	Total          int
	SucceededCount int
	FailedCount    int
	Expression     string
}

type detailContent struct {
	Evaluation *store.Evaluation
}

type messageContent struct {
	Title   string
	Message string
}

// --- Page Handlers ---

func (h *Handler) history(c *fiber.Ctx) error {
	all := h.store.List(0)

	var succeeded, failed int
	for _, ev := range all {
		switch ev.State {
		case store.StateSucceeded:
			succeeded++
		case store.StateFailed:
			failed++
		}
	}

	recent := all
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	return h.render(c, "history.html", "history", historyContent{
		Evaluations:    recent,
		Total:          len(all),
		SucceededCount: succeeded,
		FailedCount:    failed,
		Expression:     c.Query("expression"),
	})
}

// evaluate handles the expression form. The result page is the recorded
// evaluation, so reloading it does not evaluate again.
func (h *Handler) evaluate(c *fiber.Ctx) error {
	text := strings.TrimSpace(c.FormValue("expression"))
	if text == "" {
		return c.Redirect("/ui")
	}

	ctx := runtime.WithSurface(c.UserContext(), "web")
	res, err := h.engine.Run(ctx, text)
	if err != nil && expr.Stage(err) == "" {
		// Cancelled before the pipeline ran; there is nothing to record.
		c.Status(fiber.StatusServiceUnavailable)
		return h.render(c, "message.html", "history", messageContent{Title: "Unavailable", Message: err.Error()})
	}
	ev := h.store.Record(store.FromRun(text, "web", res, err))

	return c.Redirect("/ui/evaluations/"+ev.ID, fiber.StatusSeeOther)
}

func (h *Handler) evaluationDetail(c *fiber.Ctx) error {
	ev, err := h.store.Get(c.Params("id"))
	if err != nil {
		c.Status(fiber.StatusNotFound)
		msg := err.Error()
		if errors.Is(err, store.ErrNotFound) {
			msg = fmt.Sprintf("Evaluation %q not found. It may have been evicted from history.", c.Params("id"))
		}
		return h.render(c, "message.html", "history", messageContent{Title: "Not found", Message: msg})
	}
	return h.render(c, "evaluation.html", "history", detailContent{Evaluation: ev})
}

// --- Template Helpers ---

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatMs renders a millisecond duration as recorded in the store.
func formatMs(ms float64) string {
	switch {
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 1000:
		return fmt.Sprintf("%.1fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

func stateClass(state store.State) string {
	switch state {
	case store.StateSucceeded:
		return "state-succeeded"
	case store.StateFailed:
		return "state-failed"
	default:
		return ""
	}
}

func stateIcon(state store.State) template.HTML {
	switch state {
	case store.StateSucceeded:
		return "&#10003;"
	case store.StateFailed:
		return "&#10007;"
	default:
		return "&#8226;"
	}
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
