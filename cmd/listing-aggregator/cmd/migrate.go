package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

const migrateTimeout = 60 * time.Second

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  "Creates or upgrades the listings table for the configured database driver.",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
	defer cancel()

	log.Info("running migrations", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "path", cfg.Database.Path)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	st.Close()

	log.Info("migrations complete")
	return nil
}
