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

func (b *Base) base() *Base { return b }

// Keyed is any model carrying the shared base columns.
type Keyed[T any] interface {
	*T
	base() *Base
}

// ReplaceKeyed stores row as the single row whose column equals key. An existing row is
// overwritten in place, keeping its id and creation time.
//
// The insert runs in a savepoint. When a concurrent writer created the keyed row first, the
// row is fetched again and overwritten instead.
func ReplaceKeyed[T any, PT Keyed[T]](ctx context.Context, tx *gorm.DB, row PT, column string, key int64) error {
	table := TableName(row)
	var existing T
	err := tx.WithContext(ctx).Where(column+" = ?", key).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		insertErr := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
			return sp.Create(row).Error
		})
		if insertErr == nil {
			return nil
		}
		if !IsUniqueViolation(insertErr) {
			return fmt.Errorf("insert %s: %w", table, insertErr)
		}

		metrics.ObserveUpsertRetry()
		logger.Log.WithFields(logrus.Fields{
			"entity": table,
			"column": column,
			"value":  key,
		}).Debug("Concurrent insert detected, replacing the winning row")

		err = tx.WithContext(ctx).Where(column+" = ?", key).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewIntegrityFailure(table, insertErr)
		}
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", table, err)
	}

	old := PT(&existing).base()
	row.base().ID = old.ID
	row.base().Created = old.Created
	if err := tx.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// ReplaceVariant writes row as the only modality variant of seriesID, clearing the other tables.
func ReplaceVariant[T any, PT Keyed[T]](ctx context.Context, tx *gorm.DB, row PT, seriesID int64) error {
	if err := ReplaceKeyed[T, PT](ctx, tx, row, "series_id", seriesID); err != nil {
		return err
	}
	table := TableName(row)
	for _, model := range ModalityModels() {
		if TableName(model) == table {
			continue
		}
		if err := tx.WithContext(ctx).Where("series_id = ?", seriesID).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %s: %w", TableName(model), err)
		}
	}
	return nil
}

// ReplaceProtocol writes the single protocol row of a study.
func ReplaceProtocol(ctx context.Context, tx *gorm.DB, row *StudyProtocol) error {
	return ReplaceKeyed[StudyProtocol](ctx, tx, row, "study_id", row.StudyID)
}
