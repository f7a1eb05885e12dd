package main

import (
	"context"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/export"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/runs"
	"github.com/NKI-AI/dicom-warehouse/pkg/storage"
	"github.com/spf13/cobra"
)

func newExportCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var saveDir, format, command string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Reconstruct every series into volume files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reconstructor, err := export.NewCommandReconstructor(command)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg, opts.dbName)
			if err != nil {
				return err
			}
			defer a.Close()

			archive, err := storage.FromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			defer archive.Close()

			exp, err := export.New(a.db, reconstructor, saveDir, a.dbName, format,
				export.WithArchive(archive),
				export.WithPublisher(a.publisher))
			if err != nil {
				return err
			}

			run, err := a.runs.Track(ctx, runs.KindExport, a.dbName, map[string]interface{}{
				"save_dir":   saveDir,
				"format":     format,
				"workers":    opts.workers,
				"batch_size": opts.batchSize,
			}, func(ctx context.Context, report func(pipeline.BatchReport)) (pipeline.Summary, error) {
				return exp.Run(ctx, opts.pipeline(), report)
			})
			printRun(cmd, run)
			return err
		},
	}
	cmd.Flags().StringVar(&saveDir, "save-dir", cfg.SaveDir, "Root directory for exported volumes")
	cmd.Flags().StringVar(&format, "format", cfg.ExportFormat, "Volume format: nrrd or nifti")
	cmd.Flags().StringVar(&command, "reconstruct-command", cfg.ReconstructCommand, "Converter invoked as <command> <output> <file>...")
	return cmd
}
