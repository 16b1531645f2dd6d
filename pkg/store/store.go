// Package store provides in-memory storage for evaluation history.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/observability"
	"github.com/lemonberrylabs/calc/pkg/runtime"
	"github.com/lemonberrylabs/calc/pkg/types"
)

// ErrNotFound is returned by Get for unknown or evicted IDs.
var ErrNotFound = errors.New("evaluation not found")

// State is the outcome of an evaluation.
type State string

const (
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// Evaluation is one recorded run of an expression.
type Evaluation struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Expression string           `json:"expression"`
	Source     string           `json:"source"`
	State      State            `json:"state"`
	Result     *types.Value     `json:"result,omitempty"`
	ResultType string           `json:"resultType,omitempty"`
	AST        string           `json:"ast,omitempty"`
	Error      *EvaluationError `json:"error,omitempty"`
	CreateTime time.Time        `json:"createTime"`
	DurationMs float64          `json:"durationMs"`
}

// EvaluationError describes why an evaluation failed.
type EvaluationError struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FromRun builds an Evaluation from an Engine result. Exactly one of res
// and err is expected to be non-nil.
func FromRun(expression, source string, res *runtime.Result, err error) Evaluation {
	ev := Evaluation{Expression: expression, Source: source}
	if err != nil {
		ev.State = StateFailed
		ev.Error = &EvaluationError{
			Stage:   expr.Stage(err),
			Kind:    expr.KindOf(err),
			Message: err.Error(),
		}
		return ev
	}

	v := res.Value
	ev.State = StateSucceeded
	ev.Result = &v
	ev.ResultType = v.Type().String()
	ev.AST = expr.Format(res.AST)
	ev.DurationMs = observability.Millis(res.Duration)
	return ev
}

// Store is a thread-safe, bounded, in-memory evaluation history. When full,
// recording a new evaluation evicts the oldest.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*Evaluation
	order []string // oldest first
	limit int
}

// New creates an empty store holding at most limit evaluations.
// A limit below 1 is treated as 1.
func New(limit int) *Store {
	return &Store{
		byID:  make(map[string]*Evaluation),
		limit: max(limit, 1),
	}
}

// Record assigns ev an ID and creation time and stores it. The stored
// record is returned and must not be modified.
func (s *Store) Record(ev Evaluation) *Evaluation {
	ev.ID = uuid.NewString()
	ev.Name = "evaluations/" + ev.ID
	if ev.CreateTime.IsZero() {
		ev.CreateTime = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, oldest)
	}
	s.byID[ev.ID] = &ev
	s.order = append(s.order, ev.ID)
	return &ev
}

// Get retrieves an evaluation by ID.
func (s *Store) Get(id string) (*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ev, nil
}

// List returns up to n evaluations, newest first. n <= 0 means all.
func (s *Store) List(n int) []*Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.order) {
		n = len(s.order)
	}
	result := make([]*Evaluation, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.byID[s.order[i]])
	}
	return result
}

// Len returns the number of stored evaluations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Clear removes every evaluation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Evaluation)
	s.order = nil
}
