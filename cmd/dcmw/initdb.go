package main

import (
	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/database"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/spf13/cobra"
)

func newInitDBCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the warehouse database and its tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.CreateDatabaseIfNotExists(cfg, opts.dbName); err != nil {
				return err
			}
			db, err := database.Open(cfg, opts.dbName)
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := migrate(db); err != nil {
				return err
			}
			logger.Log.WithField("database", database.Name(cfg, opts.dbName)).Info("Warehouse initialised")
			return nil
		},
	}
}
