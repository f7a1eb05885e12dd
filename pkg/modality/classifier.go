package modality

import (
	"context"
	"errors"
	"fmt"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/events"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/NKI-AI/dicom-warehouse/pkg/observability/metrics"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StudyClassification is the committed outcome for one study.
type StudyClassification struct {
	StudyID          int64    `json:"study_id"`
	StudyInstanceUID string   `json:"study_instance_uid"`
	Results          []Result `json:"-"`
	Counts           Counts   `json:"counts"`
	Protocol         string   `json:"protocol"`
}

// Variants maps series ids to their described variants.
func (s *StudyClassification) Variants() map[string]string {
	out := make(map[string]string, len(s.Results))
	for _, r := range s.Results {
		out[fmt.Sprint(r.SeriesID)] = r.Describe()
	}
	return out
}

type Classifier struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewClassifier(db *gorm.DB, publisher events.Publisher) *Classifier {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Classifier{db: db, publisher: publisher}
}

// ClassifyStudy classifies every series of a study and stores the variants and the protocol
// verdict in one transaction.
func (c *Classifier) ClassifyStudy(ctx context.Context, studyID int64) (*StudyClassification, error) {
	out := &StudyClassification{StudyID: studyID}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var study warehouse.Study
		if err := tx.Take(&study, studyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return warehouse.ErrNotFound
			}
			return fmt.Errorf("load study %d: %w", studyID, err)
		}
		out.StudyInstanceUID = study.StudyInstanceUID

		series, err := warehouse.StudySeriesForClassification(ctx, tx, studyID)
		if err != nil {
			return err
		}
		results := make([]Result, 0, len(series))
		for i := range series {
			results = append(results, Classify(ctx, &series[i]))
		}

		out.Counts, out.Protocol = Determine(results)
		out.Results = results

		for _, r := range results {
			if err := r.Persist(ctx, tx); err != nil {
				return fmt.Errorf("persist variant of series %d: %w", r.SeriesID, err)
			}
		}
		protocol := out.Protocol
		return warehouse.ReplaceProtocol(ctx, tx, &warehouse.StudyProtocol{StudyID: studyID, Protocol: &protocol})
	})
	if err != nil {
		return nil, err
	}

	for _, r := range out.Results {
		metrics.ObserveVariant(r.Variant.Kind())
	}
	logger.Component("classify").WithFields(logrus.Fields{
		"study_id": studyID,
		"series":   len(out.Results),
		"protocol": out.Protocol,
	}).Debug("Study classified")

	events.PublishQuietly(ctx, c.publisher, models.EventStudyClassified, map[string]interface{}{
		"study_id":            studyID,
		"study_instance_uids": []string{out.StudyInstanceUID},
		"protocol":            out.Protocol,
		"variants":            out.Variants(),
	})
	return out, nil
}

// Run classifies every study in the warehouse, paging through studies by id.
func (c *Classifier) Run(ctx context.Context, opts pipeline.Options, onBatch func(pipeline.BatchReport)) (pipeline.Summary, error) {
	repo := warehouse.NewRepository(c.db)
	studies := pipeline.PageBatches(func(ctx context.Context, offset, limit int) ([]int64, error) {
		page, err := repo.StudyPage(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(page))
		for i := range page {
			ids[i] = page[i].ID
		}
		return ids, nil
	})

	return pipeline.Run(ctx, opts, studies, func(ctx context.Context, id int64) (pipeline.Outcome, error) {
		if _, err := c.ClassifyStudy(ctx, id); err != nil {
			logger.Component("classify").WithError(err).WithField("study_id", id).Error("Study classification failed")
			return pipeline.Failed, err
		}
		return pipeline.Processed, nil
	}, pipeline.Progress("classify", onBatch))
}

// ClassifyUIDs classifies the studies with the given instance UIDs. Unknown UIDs are logged
// and skipped.
func (c *Classifier) ClassifyUIDs(ctx context.Context, uids []string) error {
	repo := warehouse.NewRepository(c.db)
	var errs []error
	for _, uid := range uids {
		study, err := repo.GetStudyByUID(ctx, uid)
		if errors.Is(err, warehouse.ErrNotFound) {
			logger.Component("classify").WithField("study_instance_uid", uid).Warn("Study not found for classification")
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := c.ClassifyStudy(ctx, study.ID); err != nil {
			errs = append(errs, fmt.Errorf("classify %s: %w", uid, err))
		}
	}
	return errors.Join(errs...)
}
