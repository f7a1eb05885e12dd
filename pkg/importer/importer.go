// Package importer loads directories of DICOM files into the warehouse.
package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/events"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/NKI-AI/dicom-warehouse/pkg/observability/metrics"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/tags"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reader parses one source file.
type Reader func(path string) (tags.Source, error)

type Importer struct {
	db        *gorm.DB
	writer    *writer
	read      Reader
	tracker   Tracker
	publisher events.Publisher
}

type Option func(*Importer)

func WithReader(r Reader) Option { return func(im *Importer) { im.read = r } }

func WithTracker(t Tracker) Option { return func(im *Importer) { im.tracker = t } }

func WithPublisher(p events.Publisher) Option { return func(im *Importer) { im.publisher = p } }

// New validates mapping against the warehouse schema and returns an importer writing to db.
func New(db *gorm.DB, mapping tags.Mapping, opts ...Option) (*Importer, error) {
	if err := warehouse.ValidateMapping(mapping); err != nil {
		return nil, err
	}
	im := &Importer{
		db:        db,
		writer:    &writer{mapping: mapping},
		read:      tags.ReadFile,
		tracker:   NopTracker{},
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(im)
	}
	return im, nil
}

// Run discovers the units below roots and imports them batch by batch.
func (im *Importer) Run(ctx context.Context, roots []string, opts pipeline.Options, onBatch func(pipeline.BatchReport)) (pipeline.Summary, error) {
	units, err := Discover(roots...)
	if err != nil {
		return pipeline.Summary{}, err
	}
	logger.Component("import").WithFields(logrus.Fields{
		"roots": roots,
		"units": len(units),
	}).Info("Discovered import units")

	return pipeline.Run(ctx, opts, pipeline.SliceBatches(units), im.ImportUnit, pipeline.Progress("import", onBatch))
}

// ImportUnit writes every file of u in one transaction. Malformed files are skipped inside
// their own savepoint; any other error rolls the whole unit back. A unit with no importable
// file is Skipped.
func (im *Importer) ImportUnit(ctx context.Context, u Unit) (pipeline.Outcome, error) {
	log := logger.Component("import").WithField("unit", u.Dir)

	done, err := im.tracker.Done(ctx, u)
	if err != nil {
		log.WithError(err).Warn("Resume check failed, importing anyway")
	} else if done {
		log.Debug("Unit already imported")
		return pipeline.Skipped, nil
	}

	studies := map[string]struct{}{}
	imported, malformed := 0, 0

	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, path := range u.Paths() {
			var c *chain
			fileErr := tx.Transaction(func(ftx *gorm.DB) error {
				src, err := im.read(path)
				if err != nil {
					return err
				}
				c, err = im.writer.write(ctx, ftx, path, src)
				return err
			})
			switch {
			case fileErr == nil:
				imported++
				studies[c.Study.StudyInstanceUID] = struct{}{}
			case errs.IsMalformedSource(fileErr):
				malformed++
				metrics.ObserveMalformedFile()
				log.WithError(fileErr).WithField("file", path).Warn("Skipping malformed file")
			default:
				return fmt.Errorf("%s: %w", path, fileErr)
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Unit import failed, rolled back")
		return pipeline.Failed, err
	}
	if imported == 0 {
		return pipeline.Skipped, nil
	}

	if err := im.tracker.Mark(ctx, u); err != nil {
		log.WithError(err).Warn("Failed to record imported unit")
	}

	uids := make([]string, 0, len(studies))
	for uid := range studies {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	events.PublishQuietly(ctx, im.publisher, models.EventUnitImported, map[string]interface{}{
		"dir":                 u.Dir,
		"files":               len(u.Files),
		"imported":            imported,
		"malformed":           malformed,
		"study_instance_uids": uids,
	})
	return pipeline.Processed, nil
}
