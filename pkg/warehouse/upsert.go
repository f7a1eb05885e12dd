package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Filter names the unique column identifying a row.
type Filter struct {
	Column string
	Value  any
}

// Link points a child row at its parent.
type Link struct {
	Column string
	ID     int64
}

// Upsert returns the row matching filter, inserting candidate when none exists.
//
// The insert runs in its own savepoint when db is already inside a transaction. A concurrent
// writer winning the race surfaces as a uniqueness violation; the fetch is then retried once.
// Other constraint or data errors are ValidationFailure and never retried.
func Upsert[T any](ctx context.Context, db *gorm.DB, candidate *T, filter Filter, link *Link, extra map[string]any) (*T, error) {
	entity := TableName(candidate)
	if filter.Value == nil || filter.Value == "" {
		return nil, errs.NewValidationFailure(entity, fmt.Errorf("unique column %s is empty", filter.Column))
	}

	existing, err := fetch[T](ctx, db, filter)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("fetch %s: %w", entity, err)
	}

	attrs := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		attrs[k] = v
	}
	attrs[filter.Column] = filter.Value
	if link != nil {
		attrs[link.Column] = link.ID
	}
	if err := Populate(ctx, candidate, attrs); err != nil {
		return nil, err
	}

	insertErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(candidate).Error
	})
	if insertErr == nil {
		return candidate, nil
	}

	switch {
	case IsUniqueViolation(insertErr):
		metrics.ObserveUpsertRetry()
		logger.Log.WithFields(logrus.Fields{
			"entity": entity,
			"column": filter.Column,
			"value":  filter.Value,
		}).Debug("Concurrent insert detected, re-fetching")

		existing, err := fetch[T](ctx, db, filter)
		if err == nil {
			return existing, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, errs.NewIntegrityFailure(entity, insertErr)
		}
		return nil, fmt.Errorf("re-fetch %s: %w", entity, err)
	case IsDataViolation(insertErr):
		return nil, errs.NewValidationFailure(entity, insertErr)
	}
	return nil, fmt.Errorf("insert %s: %w", entity, insertErr)
}

func fetch[T any](ctx context.Context, db *gorm.DB, filter Filter) (*T, error) {
	var row T
	err := db.WithContext(ctx).Where(map[string]any{filter.Column: filter.Value}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
