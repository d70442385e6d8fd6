package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-bas/open-bas/internal/config"
	"github.com/open-bas/open-bas/internal/metrics"
	"github.com/open-bas/open-bas/internal/sync"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Reconcile integrations on an interval and on request.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.ReconcileInterval <= 0 {
		return errors.New("RECONCILE_INTERVAL must be > 0 to run the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	triggers := make(chan struct{}, 1)
	go func() {
		if err := sync.ListenForReconcileRequests(ctx, a.pool, triggers); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reconcile listener failed", "err", err)
		}
	}()

	logger.Info("reconcile worker started", "interval", cfg.ReconcileInterval, "lock_mode", cfg.ManagerLockMode)
	scheduler := sync.Scheduler{Runner: a.holder, Interval: cfg.ReconcileInterval, Trigger: triggers, Logger: logger}
	_, metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr, logger)
	doneCh := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(doneCh)
	}()

	var metricsErr error
	select {
	case <-ctx.Done():
	case err := <-metricsErrCh:
		metricsErr = err
		logger.Error("metrics server failed", "err", err)
		stop()
	case <-doneCh:
	}
	<-doneCh
	return metricsErr
}
