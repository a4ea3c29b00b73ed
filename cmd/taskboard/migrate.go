package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/persistence"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			_, cleanup, err := persistence.Provide(cfg, log)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("Schema is up to date", zap.String("db_driver", cfg.Database.Driver))
			return cleanup()
		},
	}
}
