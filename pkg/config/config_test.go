package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory so no stray .env is read.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ">>> ", cfg.Prompt)
	assert.Equal(t, "0.0.0.0:8787", cfg.HTTPAddr())
	assert.Equal(t, "0.0.0.0:8788", cfg.GRPCAddr())
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadYAML(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "calc.yaml", `
prompt: "calc> "
show_ast: true
max_depth: 16
log:
  level: debug
  format: json
telemetry:
  enabled: true
server:
  port: 9000
  grpc_port: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "calc> ", cfg.Prompt)
	assert.True(t, cfg.ShowAST)
	assert.Equal(t, 16, cfg.MaxDepth)
	assert.Equal(t, Default().MaxLength, cfg.MaxLength)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "", cfg.GRPCAddr())
}

func TestLoadJSON(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "calc.json", `{"max_length": 64, "server": {"history": 5}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MaxLength)
	assert.Equal(t, 5, cfg.Server.History)
}

func TestLoadEmptyFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "empty.yaml", "\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileErrors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "open config")

	unknown := writeFile(t, dir, "unknown.yaml", "colour: blue\n")
	_, err = Load(unknown)
	assert.ErrorContains(t, err, "colour")

	bad := writeFile(t, dir, "bad.yaml", "max_depth: [1, 2]\n")
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "calc.yaml", "max_depth: 16\nprompt: file\n")

	t.Setenv("CALC_MAX_DEPTH", "8")
	t.Setenv("CALC_SHOW_TOKENS", "true")
	t.Setenv("CALC_HOST", "127.0.0.1")
	t.Setenv("CALC_PROMPT", "")
	t.Setenv("CALC_TELEMETRY", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.True(t, cfg.ShowTokens)
	assert.Equal(t, "127.0.0.1:8787", cfg.HTTPAddr())
	assert.True(t, cfg.Telemetry.Enabled)
	// Empty variables are ignored.
	assert.Equal(t, "file", cfg.Prompt)
}

func TestEnvErrors(t *testing.T) {
	isolate(t)
	t.Setenv("CALC_PORT", "eighty")
	t.Setenv("CALC_WEB_UI", "maybe")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorContains(t, err, "CALC_PORT")
	assert.ErrorContains(t, err, "CALC_WEB_UI")
}

func TestDotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".env", "CALC_LOG_LEVEL=warn\nCALC_HISTORY=10\n")

	// Real environment wins over .env.
	t.Setenv("CALC_HISTORY", "20")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Server.History)

	// godotenv sets the process environment; undo it for later tests.
	t.Cleanup(func() { os.Unsetenv("CALC_LOG_LEVEL") })
}

func TestExplicitDotEnvMustExist(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CALC_ENV_FILE", filepath.Join(dir, "nope.env"))

	_, err := Load("")
	assert.ErrorContains(t, err, "nope.env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"depth", func(c *Config) { c.MaxDepth = 0 }, "max_depth"},
		{"length", func(c *Config) { c.MaxLength = -1 }, "max_length"},
		{"level", func(c *Config) { c.Log.Level = "verbose" }, "log level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "port must be between"},
		{"zero http port", func(c *Config) { c.Server.Port = 0 }, "port must be between"},
		{"same ports", func(c *Config) { c.Server.GRPCPort = c.Server.Port }, "must differ"},
		{"history", func(c *Config) { c.Server.History = 0 }, "history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}
