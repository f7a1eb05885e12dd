package importer

import (
	"context"
	"fmt"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/tags"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/gorm"
)

// writer persists the Patient, Study, Series, Image, MRIImage and vendor chain of one file.
type writer struct {
	mapping tags.Mapping
}

// chain is what one file resolved to.
type chain struct {
	Patient *warehouse.Patient
	Study   *warehouse.Study
	Series  *warehouse.Series
	Image   *warehouse.Image
	MRI     *warehouse.MRIImage
	Vendor  warehouse.Vendor
}

func (w *writer) write(ctx context.Context, tx *gorm.DB, path string, src tags.Source) (*chain, error) {
	var c chain
	var err error

	if c.Patient, err = upsertEntity[warehouse.Patient](ctx, tx, w, path, src, tags.EntityPatient, nil, nil); err != nil {
		return nil, err
	}
	c.Study, err = upsertEntity[warehouse.Study](ctx, tx, w, path, src, tags.EntityStudy,
		&warehouse.Link{Column: "patient_id", ID: c.Patient.ID}, nil)
	if err != nil {
		return nil, err
	}
	c.Series, err = upsertEntity[warehouse.Series](ctx, tx, w, path, src, tags.EntitySeries,
		&warehouse.Link{Column: "study_id", ID: c.Study.ID}, nil)
	if err != nil {
		return nil, err
	}
	c.Image, err = upsertEntity[warehouse.Image](ctx, tx, w, path, src, tags.EntityImage,
		&warehouse.Link{Column: "series_id", ID: c.Series.ID}, map[string]any{"dicom_file": path})
	if err != nil {
		return nil, err
	}
	c.MRI, err = upsertEntity[warehouse.MRIImage](ctx, tx, w, path, src, tags.EntityMRIImage,
		&warehouse.Link{Column: "image_id", ID: c.Image.ID}, nil)
	if err != nil {
		return nil, err
	}

	vendor, ok := warehouse.DetectVendor(c.Series.Manufacturer)
	if !ok {
		return &c, nil
	}
	c.Vendor = vendor
	filter := warehouse.Filter{Column: "image_id", Value: c.MRI.ID}
	rec := tags.Extract(src, w.mapping.Fields(vendor.Entity()))
	switch vendor {
	case warehouse.VendorPhilips:
		_, err = upsertRecord[warehouse.MRIImagePhilips](ctx, tx, vendor.Entity(), rec, filter)
	case warehouse.VendorSiemens:
		_, err = upsertRecord[warehouse.MRIImageSiemens](ctx, tx, vendor.Entity(), rec, filter)
	case warehouse.VendorGE:
		_, err = upsertRecord[warehouse.MRIImageGE](ctx, tx, vendor.Entity(), rec, filter)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// upsertEntity extracts entity from src and upserts it by its unique mapped field. A file
// without the unique value is malformed.
func upsertEntity[T any](ctx context.Context, tx *gorm.DB, w *writer, path string, src tags.Source, entity string, link *warehouse.Link, extra map[string]any) (*T, error) {
	field, ok := w.mapping.UniqueField(entity)
	if !ok {
		return nil, errs.NewConfigurationError(fmt.Errorf("%s has no unique field", entity))
	}

	fields := w.mapping.Fields(entity)
	rec := tags.Extract(src, fields)
	value := rec[field.Column()]
	if value == nil || value == "" {
		return nil, errs.NewMalformedSource(path, fmt.Errorf("%s has no %s", entity, field.Name))
	}
	for _, f := range fields {
		if f.NotNull && rec[f.Column()] == nil {
			return nil, errs.NewValidationFailure(entity, fmt.Errorf("%s is required", f.Name))
		}
	}

	delete(rec, field.Column())
	candidate := new(T)
	if err := warehouse.Populate(ctx, candidate, rec); err != nil {
		return nil, err
	}
	return warehouse.Upsert(ctx, tx, candidate, warehouse.Filter{Column: field.Column(), Value: value}, link, extra)
}

// upsertRecord upserts a row keyed by filter, filling it from rec.
func upsertRecord[T any](ctx context.Context, tx *gorm.DB, entity string, rec tags.Record, filter warehouse.Filter) (*T, error) {
	candidate := new(T)
	if err := warehouse.Populate(ctx, candidate, rec); err != nil {
		return nil, fmt.Errorf("%s: %w", entity, err)
	}
	return warehouse.Upsert(ctx, tx, candidate, filter, nil, nil)
}
