package main

import (
	"errors"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/open-bas/open-bas/internal/config"
	"github.com/spf13/cobra"
)

var migrateSource string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		m, err := migrate.New(migrateSource, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() {
			srcErr, dbErr := m.Close()
			if err := errors.Join(srcErr, dbErr); err != nil {
				slog.Warn("closing migrator", "err", err)
			}
		}()

		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				slog.Info("no changes to apply")
				return nil
			}
			return err
		}

		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		slog.Info("migrations applied successfully", "version", version, "dirty", dirty)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSource, "source", "file://db/migrations", "migration source URL")
}
