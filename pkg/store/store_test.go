package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/calc/pkg/runtime"
)

func run(t *testing.T, text string) Evaluation {
	t.Helper()
	res, err := runtime.NewEngine().Run(context.Background(), text)
	return FromRun(text, "test", res, err)
}

func TestFromRunSuccess(t *testing.T) {
	ev := run(t, "1 + 2 * 3")

	assert.Equal(t, StateSucceeded, ev.State)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "7", ev.Result.String())
	assert.Equal(t, "number", ev.ResultType)
	assert.Equal(t, "1 + 2 * 3", ev.AST)
	assert.Nil(t, ev.Error)
}

func TestFromRunFailure(t *testing.T) {
	ev := run(t, "1 / 0")

	assert.Equal(t, StateFailed, ev.State)
	assert.Nil(t, ev.Result)
	require.NotNil(t, ev.Error)
	assert.Equal(t, EvaluationError{Stage: "eval", Kind: "DivisionByZero", Message: "division by zero"}, *ev.Error)
}

func TestRecordAndGet(t *testing.T) {
	s := New(10)
	stored := s.Record(run(t, "1 < 2"))

	_, err := uuid.Parse(stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "evaluations/"+stored.ID, stored.Name)
	assert.False(t, stored.CreateTime.IsZero())

	got, err := s.Get(stored.ID)
	require.NoError(t, err)
	assert.Same(t, stored, got)

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := New(10)
	for i := range 4 {
		s.Record(run(t, fmt.Sprint(i)))
	}

	all := s.List(0)
	require.Len(t, all, 4)
	assert.Equal(t, "3", all[0].Expression)
	assert.Equal(t, "0", all[3].Expression)

	top := s.List(2)
	require.Len(t, top, 2)
	assert.Equal(t, "3", top[0].Expression)
	assert.Equal(t, "2", top[1].Expression)

	assert.Len(t, s.List(100), 4)
}

func TestEviction(t *testing.T) {
	s := New(2)
	first := s.Record(run(t, "1"))
	s.Record(run(t, "2"))
	s.Record(run(t, "3"))

	assert.Equal(t, 2, s.Len())
	_, err := s.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	exprs := []string{}
	for _, ev := range s.List(0) {
		exprs = append(exprs, ev.Expression)
	}
	assert.Equal(t, []string{"3", "2"}, exprs)
}

func TestMinimumLimit(t *testing.T) {
	s := New(0)
	s.Record(run(t, "1"))
	s.Record(run(t, "2"))
	assert.Equal(t, 1, s.Len())
}

func TestClear(t *testing.T) {
	s := New(5)
	s.Record(run(t, "1"))
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.List(0))
}

func TestEvaluationJSON(t *testing.T) {
	s := New(5)
	ok := s.Record(run(t, "2 > 1"))
	bad := s.Record(run(t, "(1"))

	b, err := json.Marshal(ok)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, true, m["result"])
	assert.Equal(t, "bool", m["resultType"])
	assert.Equal(t, "SUCCEEDED", m["state"])
	assert.NotContains(t, m, "error")

	b, err = json.Marshal(bad)
	require.NoError(t, err)
	m = nil
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "FAILED", m["state"])
	assert.NotContains(t, m, "result")
	assert.Equal(t, map[string]any{
		"stage":   "parse",
		"kind":    "UnmatchedParen",
		"message": "expected ')', got end of input at position 2",
	}, m["error"])
}

func TestConcurrentAccess(t *testing.T) {
	s := New(50)
	ev := run(t, "1 + 1")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 10 {
				s.Record(ev)
			}
		}()
		go func() {
			defer wg.Done()
			for range 10 {
				for _, got := range s.List(5) {
					_, _ = s.Get(got.ID)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
