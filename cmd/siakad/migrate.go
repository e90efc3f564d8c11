package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/siakad-api/pkg/config"
	"github.com/noah-isme/siakad-api/pkg/database"
	"github.com/noah-isme/siakad-api/pkg/logger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status|redo|version|reset]",
		Short: "Run database migrations",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			var extra []string
			if len(args) > 0 {
				command, extra = args[0], args[1:]
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			db, err := database.NewPostgres(context.Background(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			return database.Migrate(db.DB, logr, command, extra...)
		},
	}
}
