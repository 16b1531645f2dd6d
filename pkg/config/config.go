// Package config loads calculator settings. Sources are applied in order,
// each overriding the last: built-in defaults, a YAML (or JSON) file, a
// .env file, then CALC_* environment variables. Command-line flags are
// applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/observability"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CALC_"

// DefaultDotEnv is the .env file read when CALC_ENV_FILE is unset.
const DefaultDotEnv = ".env"

// Config holds every setting shared by the CLI, the REPL and the servers.
type Config struct {
	Prompt      string `yaml:"prompt"`
	ShowAST     bool   `yaml:"show_ast"`
	ShowTokens  bool   `yaml:"show_tokens"`
	MaxDepth    int    `yaml:"max_depth"`
	MaxLength   int    `yaml:"max_length"`
	TraceParser bool   `yaml:"trace_parser"`

	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig turns on the OpenTelemetry SDK. When disabled, metrics and
// spans are not recorded at all.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig configures `calc serve`.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"` // 0 disables the gRPC listener
	History  int    `yaml:"history"`   // evaluations kept in memory
	WebUI    bool   `yaml:"web_ui"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Prompt:    ">>> ",
		MaxDepth:  expr.DefaultMaxDepth,
		MaxLength: expr.DefaultMaxLength,
		Log: LogConfig{
			Level:  "info",
			Format: observability.FormatText,
		},
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8787,
			GRPCPort: 8788,
			History:  1000,
			WebUI:    true,
		},
	}
}

// Load builds a Config from the defaults, the file at path (skipped when
// path is empty), the .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML from r onto cfg. Unknown keys are rejected.
func (c *Config) decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// loadDotEnv loads CALC_ENV_FILE, or ./.env when unset. A missing default
// file is not an error; a missing explicit one is. Variables already in the
// environment are never overwritten.
func loadDotEnv() error {
	path, explicit := os.LookupEnv(EnvPrefix + "ENV_FILE")
	if !explicit || path == "" {
		path = DefaultDotEnv
	}

	err := godotenv.Load(path)
	switch {
	case err == nil:
		slog.Debug("loaded .env file", slog.String("path", path))
		return nil
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return nil
	default:
		return fmt.Errorf("load %s: %w", path, err)
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, key, v))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %q is not a boolean", EnvPrefix, key, v))
			return
		}
		*dst = b
	}

	str("PROMPT", &c.Prompt)
	flag("SHOW_AST", &c.ShowAST)
	flag("SHOW_TOKENS", &c.ShowTokens)
	num("MAX_DEPTH", &c.MaxDepth)
	num("MAX_LENGTH", &c.MaxLength)
	flag("TRACE_PARSER", &c.TraceParser)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	flag("TELEMETRY", &c.Telemetry.Enabled)
	str("HOST", &c.Server.Host)
	num("PORT", &c.Server.Port)
	num("GRPC_PORT", &c.Server.GRPCPort)
	num("HISTORY", &c.Server.History)
	flag("WEB_UI", &c.Server.WebUI)

	return errors.Join(errs...)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be at least 1, got %d", c.MaxDepth))
	}
	if c.MaxLength < 1 {
		errs = append(errs, fmt.Errorf("max_length must be at least 1, got %d", c.MaxLength))
	}
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case observability.FormatText, observability.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log format must be %s or %s, got %q",
			observability.FormatText, observability.FormatJSON, c.Log.Format))
	}
	if err := validatePort("port", c.Server.Port, false); err != nil {
		errs = append(errs, err)
	}
	if err := validatePort("grpc_port", c.Server.GRPCPort, true); err != nil {
		errs = append(errs, err)
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		errs = append(errs, fmt.Errorf("port and grpc_port must differ, both are %d", c.Server.Port))
	}
	if c.Server.History < 1 {
		errs = append(errs, fmt.Errorf("history must be at least 1, got %d", c.Server.History))
	}
	return errors.Join(errs...)
}

func validatePort(name string, port int, allowZero bool) error {
	if port == 0 && allowZero {
		return nil
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// HTTPAddr is the host:port the HTTP server binds.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr is the host:port the gRPC server binds, or "" when disabled.
func (c *Config) GRPCAddr() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
