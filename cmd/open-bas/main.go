package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/open-bas/open-bas/internal/logging"
	"github.com/open-bas/open-bas/internal/sync"
)

func main() {
	os.Exit(runMain(Execute, os.Stderr))
}

func runMain(execute func() error, stderr io.Writer) int {
	err := execute()
	if err == nil {
		return 0
	}
	return exitCodeForError(err, stderr)
}

// classifyError maps a command error to its exit code and log message. The
// error returned is the one worth reporting; silent errors were already reported.
func classifyError(err error) (code int, message string, report error, silent bool) {
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		report = err
		if ee.err != nil {
			report = ee.err
		}
		return ee.code, "command failed", report, ee.silent
	case errors.Is(err, context.Canceled):
		return exitCodeCanceled, "command canceled", err, false
	case errors.Is(err, sync.ErrReconcileAlreadyRunning):
		return exitCodeBusy, "reconcile already running", err, false
	default:
		return exitCodeFailure, "command failed", err, false
	}
}

func exitCodeForError(err error, stderr io.Writer) int {
	code, message, report, silent := classifyError(err)
	if !silent {
		emitCommandError(report, message, code, stderr)
	}
	return code
}

// emitCommandError writes the failure once, as a log record for long-running
// commands and as a plain line for the rest.
func emitCommandError(err error, message string, exitCode int, stderr io.Writer) {
	exec := currentCommandExecutionContext()
	if exec.UsesStructuredLog {
		cfg, cfgErr := logging.LoadConfigFromEnv()
		if cfgErr != nil {
			cfg = logging.DefaultConfig()
		}
		logging.NewLogger(cfg, stderr, exec.CommandPath).Error(message, "exit_code", exitCode, "error", err)
		return
	}
	if exitCode == exitCodeCanceled {
		fmt.Fprintln(stderr, "canceled")
		return
	}
	fmt.Fprintln(stderr, err)
}
