package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/wastewatch-api/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewPostgres(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		applied, err := database.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		logr.Info("migrations applied", zap.Strings("versions", applied))
		return nil
	},
}
