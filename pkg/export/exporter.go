// Package export reconstructs warehouse series into volume files, one per acquisition time.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/events"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/NKI-AI/dicom-warehouse/pkg/observability/metrics"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/storage"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Exporter struct {
	repo          *warehouse.Repository
	reconstructor Reconstructor
	archive       storage.Archive
	publisher     events.Publisher
	saveDir       string
	dbName        string
	ext           string
	now           func() time.Time
}

type Option func(*Exporter)

func WithArchive(a storage.Archive) Option { return func(e *Exporter) { e.archive = a } }

func WithPublisher(p events.Publisher) Option { return func(e *Exporter) { e.publisher = p } }

// New validates format and returns an exporter writing below saveDir/dbName.
func New(db *gorm.DB, r Reconstructor, saveDir, dbName, format string, opts ...Option) (*Exporter, error) {
	ext, err := Extension(format)
	if err != nil {
		return nil, err
	}
	e := &Exporter{
		repo:          warehouse.NewRepository(db),
		reconstructor: r,
		archive:       storage.Nop{},
		publisher:     events.Nop{},
		saveDir:       saveDir,
		dbName:        dbName,
		ext:           ext,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run pages through every series.
func (e *Exporter) Run(ctx context.Context, opts pipeline.Options, onBatch func(pipeline.BatchReport)) (pipeline.Summary, error) {
	batches := pipeline.PageBatches(e.repo.SeriesPage)
	return pipeline.Run(ctx, opts, batches, e.ExportSeries, pipeline.Progress("export", onBatch))
}

// ExportSeries writes one artifact per acquisition group. A failing group is logged and
// the remaining groups still run; the series then counts as failed.
func (e *Exporter) ExportSeries(ctx context.Context, series warehouse.Series) (pipeline.Outcome, error) {
	log := logger.Component("export").WithField("series_instance_uid", series.SeriesInstanceUID)
	if series.Study == nil {
		study, err := e.repo.GetStudy(ctx, series.StudyID)
		if err != nil {
			return pipeline.Failed, fmt.Errorf("study of series %s: %w", series.SeriesInstanceUID, err)
		}
		series.Study = study
	}

	groups := GroupImages(series.Images)
	if len(groups) == 0 {
		log.Debug("Series has no acquisition times, nothing to export")
		return pipeline.Skipped, nil
	}

	written := 0
	var failures []error
	for _, g := range groups {
		ok, err := e.exportGroup(ctx, &series, g)
		if err != nil {
			log.WithError(err).WithField("acquisition_time", timestamp(g.Time)).Error("Export of acquisition group failed")
			failures = append(failures, err)
			continue
		}
		if ok {
			written++
		}
	}

	switch {
	case len(failures) > 0:
		return pipeline.Failed, errors.Join(failures...)
	case written == 0:
		return pipeline.Skipped, nil
	}
	return pipeline.Processed, nil
}

// exportGroup reports whether a new artifact was written.
func (e *Exporter) exportGroup(ctx context.Context, series *warehouse.Series, g Group) (bool, error) {
	files := g.Files()
	if len(files) == 0 {
		return false, fmt.Errorf("no source files for %s", timestamp(g.Time))
	}

	output := OutputPath(e.saveDir, e.dbName, series.Study, series, g.Time, e.ext)
	log := logger.Component("export").WithFields(logrus.Fields{
		"series_instance_uid": series.SeriesInstanceUID,
		"output":              output,
	})
	if _, err := os.Stat(output); err == nil {
		log.Info("Artifact already exists, skipping")
		metrics.ObserveArtifact(false)
		recorded, err := e.repo.ScanPathExists(ctx, output)
		if err != nil {
			return false, fmt.Errorf("look up scan path: %w", err)
		}
		if !recorded {
			log.Info("Recording scan path of existing artifact")
			return false, e.recordScanPath(ctx, series, g, output, log)
		}
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return false, err
	}
	meta := NewMetadata(e.dbName, series.Study, series, g.Time, e.now())
	if err := e.reconstructor.Reconstruct(ctx, files, output, meta); err != nil {
		return false, err
	}
	metrics.ObserveArtifact(true)

	if err := e.recordScanPath(ctx, series, g, output, log); err != nil {
		return true, err
	}

	key, err := storage.Key(e.saveDir, output)
	if err == nil {
		err = e.archiveArtifact(ctx, key, output)
	}
	if err != nil {
		log.WithError(err).Warn("Artifact not archived")
	}

	events.PublishQuietly(ctx, e.publisher, models.EventSeriesExported, map[string]interface{}{
		"series_instance_uid": series.SeriesInstanceUID,
		"study_instance_uid":  series.Study.StudyInstanceUID,
		"path":                output,
		"key":                 key,
		"acquisition_time":    timestamp(g.Time),
	})
	log.Info("Series exported")
	return true, nil
}

func (e *Exporter) recordScanPath(ctx context.Context, series *warehouse.Series, g Group, output string, log *logrus.Entry) error {
	acquired := g.Time
	row := &warehouse.ScanPath{SeriesID: series.ID, Path: output, AcquisitionTime: &acquired}
	if err := e.repo.InsertScanPath(ctx, row); err != nil {
		if !warehouse.IsUniqueViolation(err) && !warehouse.IsDataViolation(err) {
			return fmt.Errorf("record scan path: %w", err)
		}
		log.WithError(err).Warn("Scan path not recorded")
	}
	return nil
}

// archiveArtifact uploads the volume, then its metadata sidecar when the reconstructor wrote one.
func (e *Exporter) archiveArtifact(ctx context.Context, key, output string) error {
	if err := e.archive.Put(ctx, key, output); err != nil {
		return err
	}
	sidecar := SidecarPath(output)
	if _, err := os.Stat(sidecar); err != nil {
		return nil
	}
	return e.archive.Put(ctx, SidecarPath(key), sidecar)
}
