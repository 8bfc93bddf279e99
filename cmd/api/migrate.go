package main

import (
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/n0dr1e/internal/config"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db"
)

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.Driver == config.DriverMemory {
				a.logger.Info("memory store has no schema; nothing to do")
				return nil
			}
			store, err := db.Open(cmd.Context(), a.cfg.Database, true)
			if err != nil {
				return err
			}
			defer store.Close()
			a.logger.Info("schema ready", "driver", store.Driver)
			return nil
		},
	}
}
