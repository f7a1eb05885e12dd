// Package runs keeps a ledger of pipeline runs.
package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

var kinds = map[string]struct{}{KindImport: {}, KindClassify: {}, KindExport: {}, KindManifest: {}}

// Publisher is the part of events.Publisher the ledger needs.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data map[string]interface{}) error
}

type Service struct {
	repo      *Repository
	publisher Publisher
	retention time.Duration
}

func NewService(repo *Repository, publisher Publisher, retention time.Duration) *Service {
	return &Service{repo: repo, publisher: publisher, retention: retention}
}

// Work is one pipeline stage execution. report, when called, records batch progress.
type Work func(ctx context.Context, report func(pipeline.BatchReport)) (pipeline.Summary, error)

// Track records a run of kind around work. The run row is stored before work starts and
// finished with its counts and status afterwards; work's error is returned unchanged.
func (s *Service) Track(ctx context.Context, kind, target string, options map[string]interface{}, work Work) (*Run, error) {
	if _, ok := kinds[kind]; !ok {
		return nil, ValidationError{reason: fmt.Errorf("unknown run kind %q", kind)}
	}

	run := &Run{
		ID:      uuid.New().String(),
		Kind:    kind,
		Target:  target,
		Status:  StatusRunning,
		Options: datatypes.JSONMap(options),
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("persisting run: %w", err)
	}

	// the ledger must be written even when ctx is cancelled
	ledgerCtx := context.WithoutCancel(ctx)
	var total pipeline.Summary
	report := func(r pipeline.BatchReport) {
		total.Batches++
		total.Processed += r.Processed
		total.Failed += r.Failed
		total.Skipped += r.Skipped
		if err := s.repo.Progress(ledgerCtx, run.ID, total.Processed, total.Failed, total.Skipped, total.Batches); err != nil {
			logger.Log.WithError(err).WithField("run_id", run.ID).Warn("failed to record run progress")
		}
	}

	sum, workErr := work(ctx, report)
	run.Processed, run.Failed, run.Skipped, run.Batches = sum.Processed, sum.Failed, sum.Skipped, sum.Batches
	switch {
	case workErr == nil:
		run.Status = StatusCompleted
	case errors.Is(workErr, context.Canceled):
		run.Status = StatusCancelled
		run.Error = workErr.Error()
	default:
		run.Status = StatusFailed
		run.Error = workErr.Error()
	}

	if err := s.repo.Finish(ledgerCtx, run); err != nil {
		logger.Log.WithError(err).WithField("run_id", run.ID).Error("failed to finish run")
	}

	logger.Log.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"kind":      kind,
		"status":    run.Status,
		"processed": run.Processed,
		"failed":    run.Failed,
		"skipped":   run.Skipped,
		"elapsed":   sum.Elapsed.Round(time.Millisecond).String(),
	}).Info("Run finished")

	if s.publisher != nil {
		if err := s.publisher.Publish(ledgerCtx, models.EventRunFinished, map[string]interface{}{
			"run_id":    run.ID,
			"kind":      kind,
			"status":    run.Status,
			"processed": run.Processed,
			"failed":    run.Failed,
			"skipped":   run.Skipped,
		}); err != nil {
			logger.Log.WithError(err).Warn("failed to publish run event")
		}
	}
	return run, workErr
}

func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, kind string, limit int) ([]Run, error) {
	if kind != "" {
		if _, ok := kinds[kind]; !ok {
			return nil, ValidationError{reason: fmt.Errorf("unknown run kind %q", kind)}
		}
	}
	return s.repo.List(ctx, kind, limit)
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.repo.CleanupExpired(ctx, s.retention)
}
