package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("command", "migrate")

			if cfg.Storage.Type == "memory" {
				return fmt.Errorf("storage type %q has no schema to migrate", cfg.Storage.Type)
			}

			store, err := postgres.Open(cmd.Context(), cfg.Storage)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.WithField("storage", cfg.Storage.Type).Info("Migrations applied")
			return nil
		},
	}
}
