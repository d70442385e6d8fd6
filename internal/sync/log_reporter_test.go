package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/open-bas/open-bas/internal/connectors/registry"
)

type levelCountingHandler struct {
	mu     sync.Mutex
	counts map[slog.Level]int
}

func (h *levelCountingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *levelCountingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.counts == nil {
		h.counts = make(map[slog.Level]int)
	}
	h.counts[r.Level]++
	return nil
}

func (h *levelCountingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *levelCountingHandler) WithGroup(string) slog.Handler      { return h }

func (h *levelCountingHandler) Count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[level]
}

func done(total int64, err error) registry.Event {
	return registry.Event{Source: "manager", Stage: "reconcile", Done: true, Current: total, Total: total, Err: err}
}

func TestLogReporterQuietWhenNothingChanges(t *testing.T) {
	t.Parallel()

	handler := &levelCountingHandler{}
	reporter := &LogReporter{Logger: slog.New(handler)}

	reporter.Report(registry.Event{Source: "caldera", Stage: "discover", Current: 1, Total: 2})
	for range 5 {
		reporter.Report(done(3, nil))
	}
	reporter.Report(done(4, nil))

	if got := handler.Count(slog.LevelInfo); got != 2 {
		t.Fatalf("info logs = %d, want 2 (first pass and the change)", got)
	}
	if got := handler.Count(slog.LevelDebug); got != 5 {
		t.Fatalf("debug logs = %d, want 5", got)
	}
}

func TestLogReporterCountsRepeatedFailures(t *testing.T) {
	t.Parallel()

	handler := &levelCountingHandler{}
	reporter := &LogReporter{Logger: slog.New(handler)}

	boom := errors.New("boom")
	reporter.Report(done(1, boom))
	reporter.Report(done(1, boom))
	reporter.Report(done(1, boom))
	if got := handler.Count(slog.LevelError); got != 1 {
		t.Fatalf("error logs = %d, want 1", got)
	}
	if got := handler.Count(slog.LevelWarn); got != 2 {
		t.Fatalf("warn logs = %d, want 2", got)
	}
	if reporter.failures != 3 {
		t.Fatalf("failures = %d, want 3", reporter.failures)
	}

	reporter.Report(done(1, nil))
	if got := handler.Count(slog.LevelInfo); got != 1 {
		t.Fatalf("recovery should log at info, got %d", got)
	}
	if reporter.failures != 0 {
		t.Fatalf("failures not reset: %d", reporter.failures)
	}
}

func TestLogReporterAlwaysLogsStageErrors(t *testing.T) {
	t.Parallel()

	handler := &levelCountingHandler{}
	reporter := &LogReporter{Logger: slog.New(handler)}
	reporter.Report(registry.Event{Source: "manager", Stage: "initialise", Err: errors.New("boom")})
	reporter.Report(registry.Event{Source: "manager", Stage: "initialise", Err: errors.New("boom")})

	if got := handler.Count(slog.LevelError); got != 2 {
		t.Fatalf("error logs = %d, want 2", got)
	}
}
