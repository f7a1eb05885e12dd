package main

import (
	"context"
	"fmt"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/manifest"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/runs"
	"github.com/spf13/cobra"
)

func newManifestCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var dbNames []string
	var query, name, saveDir, selectionPath string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write a JSON manifest of the series a query selects across databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sel, err := manifest.LoadSelection(selectionPath)
			if err != nil {
				return err
			}
			if len(dbNames) == 0 {
				dbNames = []string{opts.dbName}
			}

			var entries []manifest.Entry
			for _, dbName := range dbNames {
				found, err := manifestFor(ctx, cfg, dbName, query, sel)
				if err != nil {
					return fmt.Errorf("%s: %w", dbName, err)
				}
				entries = append(entries, found...)
			}

			out, err := manifest.Write(saveDir, name, entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d series written to %s\n", len(entries), out)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&dbNames, "db-names", nil, "Databases to query (default: --db-name)")
	cmd.Flags().StringVar(&query, "query", "all", fmt.Sprintf("Named query, one of %v", manifest.QueryNames()))
	cmd.Flags().StringVar(&name, "name", "manifest.json", "Manifest file name")
	cmd.Flags().StringVar(&saveDir, "save-dir", ".", "Directory the manifest is written to")
	cmd.Flags().StringVar(&selectionPath, "query-config", cfg.QueryConfig, "Column selection YAML (default: built-in)")
	return cmd
}

// manifestFor builds the entries of one database and records the query in its run ledger.
func manifestFor(ctx context.Context, cfg *config.Config, dbName, query string, sel manifest.Selection) ([]manifest.Entry, error) {
	a, err := openApp(ctx, cfg, dbName)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	var entries []manifest.Entry
	_, err = a.runs.Track(ctx, runs.KindManifest, a.dbName, map[string]interface{}{"query": query},
		func(ctx context.Context, _ func(pipeline.BatchReport)) (pipeline.Summary, error) {
			m, err := manifest.Build(ctx, a.db, a.dbName, query, sel)
			if err != nil {
				return pipeline.Summary{}, err
			}
			entries = m.Entries
			return pipeline.Summary{
				Batches:   1,
				Processed: len(m.Entries) - len(m.WithoutScan),
				Skipped:   len(m.WithoutScan),
			}, nil
		})
	return entries, err
}
