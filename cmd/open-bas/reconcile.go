package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-bas/open-bas/internal/config"
	"github.com/open-bas/open-bas/internal/sync"
	"github.com/spf13/cobra"
)

var reconcileAsync bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass, or ask the worker to run one with --async.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(reconcileAsync)
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileAsync, "async", false, "notify the worker instead of reconciling in this process")
}

func runReconcile(async bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var runner sync.Runner = a.holder
	if async {
		runner = sync.NewReconcileSignalRunner(a.pool, a.locks)
	}
	return reportReconcile(logger, runner.RunOnce(ctx), a.holder.Manager())
}

func reportReconcile(logger *slog.Logger, err error, m *sync.Manager) error {
	switch {
	case err == nil:
		logger.Info("reconcile finished", "integrations", m.Len(), "started", len(m.StartedIntegrations()))
		return nil
	case errors.Is(err, sync.ErrReconcileQueued):
		logger.Info("reconcile requested from the worker")
		return nil
	case errors.Is(err, sync.ErrReconcileAlreadyRunning):
		return &exitError{code: exitCodeBusy, err: err}
	default:
		return err
	}
}
