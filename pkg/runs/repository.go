package runs

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("run not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Run{})
}

func (r *Repository) Create(ctx context.Context, run *Run) error {
	run.StartedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(run).Error
}

// Finish records the final status and counts of a run.
func (r *Repository) Finish(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	return r.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":      run.Status,
			"processed":   run.Processed,
			"failed":      run.Failed,
			"skipped":     run.Skipped,
			"batches":     run.Batches,
			"error":       run.Error,
			"finished_at": now,
		}).Error
}

// Progress stores intermediate counts of a running run.
func (r *Repository) Progress(ctx context.Context, id string, processed, failed, skipped, batches int) error {
	return r.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed": processed,
			"failed":    failed,
			"skipped":   skipped,
			"batches":   batches,
		}).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &run, result.Error
}

// List returns the most recent runs, optionally of one kind.
func (r *Repository) List(ctx context.Context, kind string, limit int) ([]Run, error) {
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Run
	return out, q.Find(&out).Error
}

func (r *Repository) CleanupExpired(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	return r.db.WithContext(ctx).Where("started_at < ? AND status <> ?", cutoff, StatusRunning).Delete(&Run{}).Error
}
