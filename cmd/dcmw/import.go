package main

import (
	"context"
	"strings"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/database"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/importer"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/runs"
	"github.com/NKI-AI/dicom-warehouse/pkg/tags"
	"github.com/spf13/cobra"
)

func newImportCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var dirs []string
	var mappingPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import directories of DICOM files into the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, opts.dbName)
			if err != nil {
				return err
			}
			defer a.Close()

			mapping, err := tags.LoadMapping(mappingPath)
			if err != nil {
				return err
			}
			im, err := importer.New(a.db, mapping,
				importer.WithPublisher(a.publisher),
				importer.WithTracker(resumeTracker(cfg, a.dbName)))
			if err != nil {
				return err
			}

			run, err := a.runs.Track(ctx, runs.KindImport, a.dbName, map[string]interface{}{
				"dirs":       dirs,
				"workers":    opts.workers,
				"batch_size": opts.batchSize,
				"strict":     opts.strict,
			}, func(ctx context.Context, report func(pipeline.BatchReport)) (pipeline.Summary, error) {
				return im.Run(ctx, dirs, opts.pipeline(), report)
			})
			printRun(cmd, run)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&dirs, "dirs", nil, "Directories to import (required)")
	cmd.Flags().StringVar(&mappingPath, "tag-mapping", cfg.TagMappingPath, "Tag mapping YAML (default: built-in)")
	_ = cmd.MarkFlagRequired("dirs")
	return cmd
}

// resumeTracker remembers imported units in Redis when IMPORT_RESUME is on. An unreachable
// Redis disables resume instead of failing the import.
func resumeTracker(cfg *config.Config, dbName string) importer.Tracker {
	if !cfg.ResumeEnabled {
		return importer.NopTracker{}
	}
	client, err := database.GetRedis()
	if err != nil {
		logger.Log.WithError(err).Warn("Import resume disabled")
		return importer.NopTracker{}
	}
	prefix := "dcmw:" + strings.ReplaceAll(dbName, ":", "_") + ":"
	return importer.NewRedisTracker(client, prefix, cfg.ResumeTTL)
}
