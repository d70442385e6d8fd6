package sync

import (
	"log/slog"
	"sync"

	"github.com/open-bas/open-bas/internal/connectors/registry"
)

// LogReporter logs reconciliation passes. Stage events go to debug. A completed
// pass is logged at info only when the number of known integrations or the
// outcome differs from the previous pass, so a steady scheduler stays quiet.
// The same failure repeated pass after pass is logged as a warning with a count.
type LogReporter struct {
	Logger *slog.Logger

	mu       sync.Mutex
	last     passOutcome
	hasLast  bool
	failures int
}

type passOutcome struct {
	known int64
	err   string
}

func (r *LogReporter) Report(e registry.Event) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"source", e.Source}
	if e.Stage != "" {
		attrs = append(attrs, "stage", e.Stage)
	}
	if e.Total > 0 {
		attrs = append(attrs, "current", e.Current, "total", e.Total)
	}

	if !e.Done {
		if e.Err != nil {
			logger.Error(failureMessage(e), append(attrs, "err", e.Err)...)
			return
		}
		logger.Debug(stageMessage(e), attrs...)
		return
	}

	outcome := passOutcome{known: e.Total}
	if e.Err != nil {
		outcome.err = e.Err.Error()
	}

	r.mu.Lock()
	changed := !r.hasLast || r.last != outcome
	r.last, r.hasLast = outcome, true
	if e.Err != nil {
		if changed {
			r.failures = 1
		} else {
			r.failures++
		}
	} else {
		r.failures = 0
	}
	failures := r.failures
	r.mu.Unlock()

	switch {
	case e.Err != nil && changed:
		logger.Error(failureMessage(e), append(attrs, "err", e.Err)...)
	case e.Err != nil:
		logger.Warn("reconcile still failing", append(attrs, "err", e.Err, "repeats", failures)...)
	case changed:
		logger.Info(completionMessage(e), attrs...)
	default:
		logger.Debug(completionMessage(e), attrs...)
	}
}

func failureMessage(e registry.Event) string {
	switch {
	case e.Message != "" && !e.Done:
		return e.Message
	case e.Source != "" && e.Stage != "":
		return e.Source + " " + e.Stage + " failed"
	case e.Source != "":
		return e.Source + " failed"
	default:
		return "reconcile failed"
	}
}

func stageMessage(e registry.Event) string {
	if e.Message != "" {
		return e.Message
	}
	return e.Stage
}

func completionMessage(e registry.Event) string {
	if e.Message != "" {
		return e.Message
	}
	return "reconcile complete"
}
