package main

import (
	"context"
	"fmt"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/database"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/events"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/runs"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// globalOptions are shared by every subcommand and override the environment.
type globalOptions struct {
	dbName    string
	workers   int
	batchSize int
	strict    bool
}

func newRootCmd() *cobra.Command {
	var opts globalOptions
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:           "dcmw",
		Short:         "DICOM warehouse: import, classify and export MRI studies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dbName, "db-name", "", "Warehouse database (default: POSTGRES_DB or SQLITE_PATH)")
	cmd.PersistentFlags().IntVar(&opts.workers, "workers", cfg.Workers, "Concurrent workers")
	cmd.PersistentFlags().IntVar(&opts.batchSize, "batch-size", cfg.BatchSize, "Units per batch")
	cmd.PersistentFlags().BoolVar(&opts.strict, "strict", cfg.Strict, "Stop at the first unit error")

	cmd.AddCommand(
		newInitDBCmd(cfg, &opts),
		newImportCmd(cfg, &opts),
		newClassifyCmd(cfg, &opts),
		newExportCmd(cfg, &opts),
		newManifestCmd(cfg, &opts),
		newServeCmd(cfg, &opts),
	)
	return cmd
}

func (o *globalOptions) pipeline() pipeline.Options {
	return pipeline.Options{Workers: o.workers, BatchSize: o.batchSize, Strict: o.strict}
}

// app is a connected warehouse with its run ledger and event sink.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	dbName    string
	repo      *warehouse.Repository
	runs      *runs.Service
	publisher events.Publisher
}

func openApp(ctx context.Context, cfg *config.Config, dbName string) (*app, error) {
	db, err := database.Open(cfg, dbName)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		database.Close(db)
		return nil, err
	}
	publisher, err := events.FromConfig(ctx, cfg)
	if err != nil {
		database.Close(db)
		return nil, err
	}
	return &app{
		cfg:       cfg,
		db:        db,
		dbName:    database.Name(cfg, dbName),
		repo:      warehouse.NewRepository(db),
		runs:      runs.NewService(runs.NewRepository(db), publisher, cfg.RunRetention),
		publisher: publisher,
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close event publisher")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close Redis")
	}
	if err := database.Close(a.db); err != nil {
		logger.Log.WithError(err).Warn("Failed to close warehouse connection")
	}
}

func migrate(db *gorm.DB) error {
	if err := warehouse.NewRepository(db).AutoMigrate(); err != nil {
		return fmt.Errorf("migrate warehouse tables: %w", err)
	}
	if err := runs.NewRepository(db).AutoMigrate(); err != nil {
		return fmt.Errorf("migrate run ledger: %w", err)
	}
	return nil
}

// printRun reports a finished run on stdout.
func printRun(cmd *cobra.Command, run *runs.Run) {
	if run == nil {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s run %s %s: %d processed, %d failed, %d skipped in %d batches\n",
		run.Kind, run.ID, run.Status, run.Processed, run.Failed, run.Skipped, run.Batches)
}
