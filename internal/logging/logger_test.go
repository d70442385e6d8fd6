package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		source  string
		want    Config
		wantErr bool
	}{
		{name: "defaults", want: Config{Format: "json", Level: slog.LevelInfo}},
		{name: "text debug", format: "text", level: "debug", want: Config{Format: "text", Level: slog.LevelDebug}},
		{name: "case and space", format: " JSON ", level: "WARN", want: Config{Format: "json", Level: slog.LevelWarn}},
		{name: "warning alias", level: "warning", want: Config{Format: "json", Level: slog.LevelWarn}},
		{name: "source", source: "true", want: Config{Format: "json", Level: slog.LevelInfo, AddSource: true}},
		{name: "invalid format", format: "yaml", wantErr: true},
		{name: "invalid level", level: "trace", wantErr: true},
		{name: "invalid source", source: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvFormat, tt.format)
			t.Setenv(EnvLevel, tt.level)
			t.Setenv(EnvSource, tt.source)

			got, err := LoadConfigFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadConfigFromEnv() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfigFromEnv() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("LoadConfigFromEnv() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func decodeLine(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected JSON log line")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	return payload
}

func TestNewLogger_JSONIncludesStaticAttrs(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(DefaultConfig(), &out, "open-bas worker")
	logger.Info("hello")

	payload := decodeLine(t, &out)
	if got := payload["app"]; got != "open-bas" {
		t.Fatalf("app = %v, want %q", got, "open-bas")
	}
	if got := payload["command"]; got != "open-bas worker" {
		t.Fatalf("command = %v, want %q", got, "open-bas worker")
	}
	if _, ok := payload["source"]; ok {
		t.Fatalf("source should be omitted by default")
	}
}

func TestNewLogger_TextAndLevel(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(Config{Format: "text", Level: slog.LevelWarn}, &out, "")
	logger.Info("dropped")
	logger.Warn("kept")

	got := out.String()
	if strings.Contains(got, "dropped") {
		t.Fatalf("info record should be filtered: %q", got)
	}
	if !strings.Contains(got, "msg=kept") || !strings.Contains(got, "command=open-bas") {
		t.Fatalf("unexpected text output %q", got)
	}
}

func TestComponent(t *testing.T) {
	var out bytes.Buffer
	logger := Component(NewLogger(Config{Format: "json", Level: slog.LevelInfo, AddSource: true}, &out, "open-bas serve"), "manager")
	logger.Info("reconciled")

	payload := decodeLine(t, &out)
	if got := payload["component"]; got != "manager" {
		t.Fatalf("component = %v, want manager", got)
	}
	if _, ok := payload["source"]; !ok {
		t.Fatalf("expected source attribute when AddSource is set")
	}

	if Component(nil, "x") == nil {
		t.Fatal("Component(nil) returned nil")
	}
}

func TestBootstrapFromEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv(EnvFormat, "")
	t.Setenv(EnvLevel, "")
	t.Setenv(EnvSource, "")

	var out bytes.Buffer
	logger, err := BootstrapFromEnv(BootstrapOptions{Command: "open-bas reconcile", Writer: &out})
	if err != nil {
		t.Fatalf("BootstrapFromEnv() error = %v", err)
	}
	if slog.Default() != logger {
		t.Fatal("expected bootstrap to install the default logger")
	}
	slog.Info("ready")
	if payload := decodeLine(t, &out); payload["command"] != "open-bas reconcile" {
		t.Fatalf("command = %v", payload["command"])
	}

	t.Setenv(EnvLevel, "loud")
	if _, err := BootstrapFromEnv(BootstrapOptions{}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
