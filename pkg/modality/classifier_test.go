package modality

import (
	"context"
	"errors"
	"testing"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/events"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse/warehousetest"
	"gorm.io/gorm"
)

type seeded struct {
	study  *warehouse.Study
	series *warehouse.Series
	vendor *warehouse.MRIImagePhilips
}

func seedPhilipsStudy(t *testing.T, db *gorm.DB, contrast, imageType string) seeded {
	t.Helper()
	patient := &warehouse.Patient{PatientName: "DOE^JANE"}
	if err := db.Create(patient).Error; err != nil {
		t.Fatalf("patient: %v", err)
	}
	study := &warehouse.Study{PatientID: patient.ID, StudyInstanceUID: "1.2.3"}
	if err := db.Create(study).Error; err != nil {
		t.Fatalf("study: %v", err)
	}
	series := &warehouse.Series{
		StudyID:           study.ID,
		SeriesInstanceUID: "1.2.3.4",
		Manufacturer:      ptr("Philips Medical Systems"),
		SeriesDescription: ptr("T2 TSE axial"),
	}
	if err := db.Create(series).Error; err != nil {
		t.Fatalf("series: %v", err)
	}
	image := &warehouse.Image{SeriesID: series.ID, SOPInstanceUID: "1.2.3.4.5", AcquisitionTime: ptr(at(9, 30, 0))}
	if err := db.Create(image).Error; err != nil {
		t.Fatalf("image: %v", err)
	}
	mri := &warehouse.MRIImage{ImageID: image.ID, SOPInstanceUID: "1.2.3.4.5"}
	if err := db.Create(mri).Error; err != nil {
		t.Fatalf("mri image: %v", err)
	}
	vendor := &warehouse.MRIImagePhilips{
		ImageID:             mri.ID,
		AcquisitionContrast: ptr(contrast),
		PulseSequenceName:   ptr("TSE"),
		ImageType:           ptr(imageType),
	}
	if err := db.Create(vendor).Error; err != nil {
		t.Fatalf("philips row: %v", err)
	}
	return seeded{study: study, series: series, vendor: vendor}
}

func countRows(t *testing.T, db *gorm.DB, model any, seriesID int64) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where("series_id = ?", seriesID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestClassifyStudyIsIdempotent(t *testing.T) {
	db := warehousetest.Open(t)
	ctx := context.Background()
	s := seedPhilipsStudy(t, db, "T2", `ORIGINAL\PRIMARY\M_SE\M\SE`)
	rec := &events.Recorder{}
	c := NewClassifier(db, rec)

	first, err := c.ClassifyStudy(ctx, s.study.ID)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if first.Protocol != "Not full protocol. Missing: T1, DWI, Ultrafast T1" {
		t.Fatalf("unexpected protocol %q", first.Protocol)
	}

	var before warehouse.T2WModality
	if err := db.Where("series_id = ?", s.series.ID).Take(&before).Error; err != nil {
		t.Fatalf("t2w row: %v", err)
	}

	if _, err := c.ClassifyStudy(ctx, s.study.ID); err != nil {
		t.Fatalf("reclassify: %v", err)
	}
	var after warehouse.T2WModality
	if err := db.Where("series_id = ?", s.series.ID).Take(&after).Error; err != nil {
		t.Fatalf("t2w row: %v", err)
	}
	if n := countRows(t, db, &warehouse.T2WModality{}, s.series.ID); n != 1 {
		t.Fatalf("expected one t2w row, got %d", n)
	}
	if after.ID != before.ID || *after.SeriesDescription != *before.SeriesDescription ||
		after.AcquisitionTime == nil || *after.AcquisitionTime != at(9, 30, 0) {
		t.Fatalf("reclassification changed the row: %+v vs %+v", before, after)
	}

	var protocols []warehouse.StudyProtocol
	if err := db.Where("study_id = ?", s.study.ID).Find(&protocols).Error; err != nil {
		t.Fatalf("protocol rows: %v", err)
	}
	if len(protocols) != 1 || *protocols[0].Protocol != first.Protocol {
		t.Fatalf("expected one protocol row, got %+v", protocols)
	}

	published := rec.OfType(models.EventStudyClassified)
	if len(published) != 2 {
		t.Fatalf("expected an event per classification, got %d", len(published))
	}
	if uids := published[0].StudyUIDs(); len(uids) != 1 || uids[0] != "1.2.3" {
		t.Fatalf("event should carry the study uid, got %v", uids)
	}
}

func TestReclassificationMovesVariantTable(t *testing.T) {
	db := warehousetest.Open(t)
	ctx := context.Background()
	s := seedPhilipsStudy(t, db, "T2", `ORIGINAL\PRIMARY\M_SE\M\SE`)
	c := NewClassifier(db, nil)

	if _, err := c.ClassifyStudy(ctx, s.study.ID); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if err := db.Model(s.vendor).Update("acquisition_contrast", "DIFFUSION").Error; err != nil {
		t.Fatalf("update vendor row: %v", err)
	}
	if _, err := c.ClassifyStudy(ctx, s.study.ID); err != nil {
		t.Fatalf("reclassify: %v", err)
	}

	if n := countRows(t, db, &warehouse.T2WModality{}, s.series.ID); n != 0 {
		t.Fatalf("stale t2w row left behind")
	}
	var dwi warehouse.DWIModality
	if err := db.Where("series_id = ?", s.series.ID).Take(&dwi).Error; err != nil {
		t.Fatalf("dwi row: %v", err)
	}
	if dwi.DWIType == nil || *dwi.DWIType != "dwi" {
		t.Fatalf("unexpected dwi row %+v", dwi)
	}
}

func TestClassifyStudyNotFound(t *testing.T) {
	db := warehousetest.Open(t)
	_, err := NewClassifier(db, nil).ClassifyStudy(context.Background(), 42)
	if !errors.Is(err, warehouse.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunClassifiesEveryStudy(t *testing.T) {
	db := warehousetest.Open(t)
	s := seedPhilipsStudy(t, db, "T1", `DERIVED\PRIMARY\PROJECTION IMAGE\M\FFE`)

	sum, err := NewClassifier(db, nil).Run(context.Background(), pipeline.Options{Workers: 1, BatchSize: 1}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 1 || sum.Failed != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if n := countRows(t, db, &warehouse.MIPModality{}, s.series.ID); n != 1 {
		t.Fatalf("expected a mip row, got %d", n)
	}
}
