package main

import (
	"context"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/modality"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/runs"
	"github.com/spf13/cobra"
)

func newClassifyCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Classify every series and determine study protocols",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, opts.dbName)
			if err != nil {
				return err
			}
			defer a.Close()

			classifier := modality.NewClassifier(a.db, a.publisher)
			run, err := a.runs.Track(ctx, runs.KindClassify, a.dbName, map[string]interface{}{
				"workers":    opts.workers,
				"batch_size": opts.batchSize,
				"strict":     opts.strict,
			}, func(ctx context.Context, report func(pipeline.BatchReport)) (pipeline.Summary, error) {
				return classifier.Run(ctx, opts.pipeline(), report)
			})
			printRun(cmd, run)
			return err
		},
	}
}
