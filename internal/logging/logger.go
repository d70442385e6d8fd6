package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	// EnvFormat selects the handler: json or text.
	EnvFormat = "LOG_FORMAT"
	// EnvLevel is the minimum severity that is written.
	EnvLevel = "LOG_LEVEL"
	// EnvSource adds the caller's file and line to every record when true.
	EnvSource = "LOG_SOURCE"

	appName       = "open-bas"
	defaultFormat = "json"
)

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Config is the logging configuration read from the environment.
type Config struct {
	Format    string
	Level     slog.Level
	AddSource bool
}

type BootstrapOptions struct {
	Command string
	Writer  io.Writer
}

func DefaultConfig() Config {
	return Config{Format: defaultFormat, Level: slog.LevelInfo}
}

// LoadConfigFromEnv reads LOG_FORMAT, LOG_LEVEL and LOG_SOURCE. Unset variables
// keep their defaults; invalid values are an error.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if raw := strings.ToLower(strings.TrimSpace(os.Getenv(EnvFormat))); raw != "" {
		if raw != "json" && raw != "text" {
			return Config{}, fmt.Errorf("%s must be one of: json, text", EnvFormat)
		}
		cfg.Format = raw
	}
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLevel))); raw != "" {
		level, ok := levels[raw]
		if !ok {
			return Config{}, fmt.Errorf("%s must be one of: debug, info, warn, error", EnvLevel)
		}
		cfg.Level = level
	}
	if raw := strings.TrimSpace(os.Getenv(EnvSource)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s must be a boolean: %w", EnvSource, err)
		}
		cfg.AddSource = v
	}
	return cfg, nil
}

// NewLogger builds a logger that tags every record with app and command.
func NewLogger(cfg Config, writer io.Writer, command string) *slog.Logger {
	if writer == nil {
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	command = strings.TrimSpace(command)
	if command == "" {
		command = appName
	}
	return slog.New(handler).With("app", appName, "command", command)
}

// BootstrapFromEnv installs the environment-configured logger as the slog default.
func BootstrapFromEnv(opts BootstrapOptions) (*slog.Logger, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, opts.Writer, opts.Command)
	slog.SetDefault(logger)
	return logger, nil
}

// Component scopes logger to one subsystem. A nil logger falls back to slog.Default.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}
