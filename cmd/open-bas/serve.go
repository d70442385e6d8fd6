package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-bas/open-bas/internal/config"
	httpapp "github.com/open-bas/open-bas/internal/http"
	"github.com/open-bas/open-bas/internal/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the integration API and keep the configured integrations running.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
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

	// The API retries the build on the next request when this fails.
	if _, err := a.holder.Get(ctx); err != nil && ctx.Err() == nil {
		logger.Error("integration manager not ready", "err", err)
	}

	srv, err := httpapp.NewEchoServer(a.holder, logger)
	if err != nil {
		return err
	}
	_, metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr, logger)

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- srv.ListenAndServe(ctx, cfg.HTTPAddr)
	}()

	select {
	case err := <-httpErrCh:
		stop()
		return err
	case err := <-metricsErrCh:
		logger.Error("metrics server failed", "err", err)
		stop()
		return errors.Join(err, <-httpErrCh)
	}
}
