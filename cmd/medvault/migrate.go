package main

import (
	"github.com/spf13/cobra"

	"medvault/internal/config"
	"medvault/internal/database"
	"medvault/internal/database/migration"
	"medvault/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the documents table and indexes if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			logger := logging.New(cmd.OutOrStdout(), cfg.TimeLocation())

			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return migration.EnsureSchema(ctx, db, logger, cfg.Database.Host)
		},
	}
}
