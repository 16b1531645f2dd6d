package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/calc/pkg/observability"
	"github.com/lemonberrylabs/calc/pkg/runtime"
)

// session feeds input to a prompt-less REPL and returns everything printed.
func session(t *testing.T, input string, opts ...Option) string {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithPrompt("")}, opts...)
	r := New(runtime.NewEngine(), strings.NewReader(input), &out, opts...)
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestResults(t *testing.T) {
	got := session(t, "1 + 2 * 3\n(1 + 2) * 3\n1 < 2\n10 / 4\n")
	assert.Equal(t, "= 7\n= 9\n= true\n= 2.5\n", got)
}

func TestErrorsDoNotStopTheLoop(t *testing.T) {
	got := session(t, "1 / 0\n1 + $\n(1 + 2\n2 * 2\n")
	assert.Equal(t, strings.Join([]string{
		"error: division by zero",
		"error: unexpected character '$' at position 4",
		"error: expected ')', got end of input at position 6",
		"= 4",
		"",
	}, "\n"), got)
}

func TestBlankLinesAndWhitespace(t *testing.T) {
	got := session(t, "\n   \n\t1 + 1  \r\n\n")
	assert.Equal(t, "= 2\n", got)
}

func TestQuit(t *testing.T) {
	got := session(t, "1\n:quit\n2\n")
	assert.Equal(t, "= 1\n", got)

	got = session(t, ":q\n3\n")
	assert.Equal(t, "", got)
}

func TestNoTrailingNewline(t *testing.T) {
	assert.Equal(t, "= 5\n", session(t, "5"))
}

func TestASTToggle(t *testing.T) {
	got := session(t, ":ast\n1 + 2 * 3\n:ast\n4\n")
	assert.Equal(t, "ast display on\n1 + 2 * 3\n= 7\nast display off\n= 4\n", got)

	got = session(t, "-1\n", WithShowAST(true))
	assert.Equal(t, "-1\n= -1\n", got)
}

func TestTokensToggle(t *testing.T) {
	got := session(t, ":tokens\n1 >= 2\n1 +\n")
	assert.Equal(t, strings.Join([]string{
		"token display on",
		`tokens: NUMBER("1")@0 GTE(">=")@2 NUMBER("2")@5`,
		"= false",
		`tokens: NUMBER("1")@0 PLUS("+")@2`,
		"error: unexpected end of input at position 3",
		"",
	}, "\n"), got)
}

// countingMetrics counts pipeline runs.
type countingMetrics struct {
	observability.NoopMetrics
	runs int
}

func (m *countingMetrics) RecordEvaluation(context.Context, string, time.Duration, error) {
	m.runs++
}

func TestTokensOnFailureRunOnce(t *testing.T) {
	metrics := &countingMetrics{}
	var out bytes.Buffer
	r := New(runtime.NewEngine(runtime.WithMetrics(metrics)),
		strings.NewReader("(1 + 2\n1 / 0\n1 $\n"), &out, WithPrompt(""), WithShowTokens(true))
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 3, metrics.runs)
	assert.Equal(t, strings.Join([]string{
		`tokens: LPAREN("(")@0 NUMBER("1")@1 PLUS("+")@3 NUMBER("2")@5`,
		"error: expected ')', got end of input at position 6",
		`tokens: NUMBER("1")@0 SLASH("/")@2 NUMBER("0")@4`,
		"error: division by zero",
		"error: unexpected character '$' at position 2",
		"",
	}, "\n"), out.String())
}

func TestHelpAndUnknownCommand(t *testing.T) {
	got := session(t, ":help\n:frobnicate\n")
	assert.True(t, strings.HasPrefix(got, helpText))
	assert.True(t, strings.HasSuffix(got, "error: unknown command :frobnicate (try :help)\n"))
}

func TestPromptAndBanner(t *testing.T) {
	var out bytes.Buffer
	r := New(runtime.NewEngine(), strings.NewReader("1\n"), &out, WithBanner("calc"))
	require.NoError(t, r.Run(context.Background()))

	// Prompt before each read, plus a newline after end of input.
	assert.Equal(t, "calc\n>>> = 1\n>>> \n", out.String())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := New(runtime.NewEngine(), strings.NewReader("1\n"), &out).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestReadError(t *testing.T) {
	var out bytes.Buffer
	err := New(runtime.NewEngine(), failingReader{}, &out, WithPrompt("")).Run(context.Background())
	assert.EqualError(t, err, "disk on fire")
}
