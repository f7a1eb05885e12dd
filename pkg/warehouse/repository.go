package warehouse

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(Models()...)
}

// StudyPage returns studies ordered by id.
func (r *Repository) StudyPage(ctx context.Context, offset, limit int) ([]Study, error) {
	var studies []Study
	err := r.db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&studies).Error
	return studies, err
}

// SeriesPage returns series ordered by id with their study and images loaded.
func (r *Repository) SeriesPage(ctx context.Context, offset, limit int) ([]Series, error) {
	var series []Series
	err := r.db.WithContext(ctx).
		Preload("Study").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("id").Offset(offset).Limit(limit).
		Find(&series).Error
	return series, err
}

func (r *Repository) GetStudy(ctx context.Context, id int64) (*Study, error) {
	var study Study
	err := r.db.WithContext(ctx).Preload("Protocol").First(&study, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &study, err
}

func (r *Repository) GetStudyByUID(ctx context.Context, uid string) (*Study, error) {
	var study Study
	err := r.db.WithContext(ctx).Where("study_instance_uid = ?", uid).Take(&study).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &study, err
}

// GetSeriesWithModality loads a series and whichever variant row it has.
func (r *Repository) GetSeriesWithModality(ctx context.Context, id int64) (*Series, error) {
	var series Series
	err := r.db.WithContext(ctx).
		Preload("T1W").Preload("T2W").Preload("MDixon").Preload("DWI").Preload("MIP").Preload("Undetermined").
		First(&series, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &series, err
}

// StudySeriesForClassification loads every series of a study with images, MRI rows and vendor rows.
func StudySeriesForClassification(ctx context.Context, db *gorm.DB, studyID int64) ([]Series, error) {
	var series []Series
	err := db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Images.MRIImage").
		Preload("Images.MRIImage.Philips").
		Preload("Images.MRIImage.Siemens").
		Preload("Images.MRIImage.GE").
		Where("study_id = ?", studyID).
		Order("id").
		Find(&series).Error
	if err != nil {
		return nil, fmt.Errorf("load series of study %d: %w", studyID, err)
	}
	return series, nil
}

// InsertScanPath records an exported artifact. A duplicate path is reported through IsUniqueViolation.
func (r *Repository) InsertScanPath(ctx context.Context, row *ScanPath) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ScanPathExists reports whether an artifact path is already recorded.
func (r *Repository) ScanPathExists(ctx context.Context, path string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ScanPath{}).Where("scan_path = ?", path).Count(&count).Error
	return count > 0, err
}
