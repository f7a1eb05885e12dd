package manifest

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse/warehousetest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func create(t *testing.T, db *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("create %T: %v", row, err)
		}
	}
}

// seedWarehouse stores a 3T ADC series with an exported scan and a 1.5T subtraction
// series from 2019 without one.
func seedWarehouse(t *testing.T) *gorm.DB {
	db := warehousetest.Open(t)
	ptr := warehousetest.Ptr[string]

	patient := &warehouse.Patient{PatientName: "DOE^JANE"}
	create(t, db, patient)
	recent := &warehouse.Study{PatientID: patient.ID, StudyInstanceUID: "1.1",
		StudyDate: warehousetest.Ptr(datatypes.Date(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)))}
	old := &warehouse.Study{PatientID: patient.ID, StudyInstanceUID: "1.2",
		StudyDate: warehousetest.Ptr(datatypes.Date(time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)))}
	create(t, db, recent, old)

	adc := &warehouse.Series{StudyID: recent.ID, SeriesInstanceUID: "1.1.1", Manufacturer: ptr("Philips")}
	sub := &warehouse.Series{StudyID: old.ID, SeriesInstanceUID: "1.2.1", Manufacturer: ptr("SIEMENS")}
	create(t, db, adc, sub)

	img1 := &warehouse.Image{SeriesID: adc.ID, SOPInstanceUID: "i1"}
	img2 := &warehouse.Image{SeriesID: adc.ID, SOPInstanceUID: "i2"}
	img3 := &warehouse.Image{SeriesID: sub.ID, SOPInstanceUID: "i3"}
	create(t, db, img1, img2, img3)
	mri1 := &warehouse.MRIImage{ImageID: img1.ID, SOPInstanceUID: "i1", MagneticFieldStrength: ptr("3")}
	create(t, db,
		mri1,
		&warehouse.MRIImage{ImageID: img2.ID, SOPInstanceUID: "i2", MagneticFieldStrength: ptr("3")},
		&warehouse.MRIImage{ImageID: img3.ID, SOPInstanceUID: "i3", MagneticFieldStrength: ptr("1.5")},
	)
	create(t, db, &warehouse.MRIImagePhilips{ImageID: mri1.ID, PulseSequenceName: ptr("DwiSE")})

	dwi := &warehouse.DWIModality{DWIType: ptr("adc")}
	dwi.SeriesID = adc.ID
	t1 := &warehouse.T1WModality{TimeSeries: ptr("slow"), Subtraction: warehousetest.Ptr(true)}
	t1.SeriesID = sub.ID
	create(t, db, dwi, t1,
		&warehouse.ScanPath{SeriesID: adc.ID, Path: "/out/a/10_00_00.nrrd"},
		&warehouse.StudyProtocol{StudyID: old.ID, Protocol: ptr("Not full protocol. Missing: T2")},
	)
	return db
}

func TestNamedQueriesSelectSeries(t *testing.T) {
	db := seedWarehouse(t)
	sel, err := LoadSelection("")
	if err != nil {
		t.Fatalf("selection: %v", err)
	}

	for query, want := range map[string][]string{
		"all":                        {"1.1.1", "1.2.1"},
		"field_strength_3t":          {"1.1.1"},
		"adc_3t":                     {"1.1.1"},
		"t1_subtraction_before_2020": {"1.2.1"},
	} {
		m, err := Build(context.Background(), db, "breast", query, sel)
		if err != nil {
			t.Fatalf("%s: %v", query, err)
		}
		if len(m.Entries) != len(want) {
			t.Fatalf("%s: expected %d entries, got %d", query, len(want), len(m.Entries))
		}
		for i, uid := range want {
			if m.Entries[i]["series_instance_uid"] != uid {
				t.Fatalf("%s: entry %d is %v, want %s", query, i, m.Entries[i]["series_instance_uid"], uid)
			}
		}
	}

	if _, err := Build(context.Background(), db, "breast", "nope", sel); err == nil {
		t.Fatalf("unknown query should fail")
	}
}

func TestEntriesFlattenRelations(t *testing.T) {
	db := seedWarehouse(t)
	sel, err := ParseSelection([]byte(`
Standard:
  columns:
    - {model_name: patient, column_name: patient_name}
    - {model_name: scan_path, column_name: scan_path}
    - {model_name: study_protocol, column_name: protocol}
    - {model_name: mri_image_philips, column_name: pulse_sequence_name}
    - {model_name: series, column_name: no_such_column}
Modality:
  columns:
    - {model_name: dwi_modality, column_name: dwi_type}
    - {model_name: t1w_modality, column_name: subtraction}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m, err := Build(context.Background(), db, "breast", "all", sel)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	adc, sub := m.Entries[0], m.Entries[1]

	if adc["patient_name"] != "DOE^JANE" || adc["db_name"] != "breast" {
		t.Fatalf("unexpected standard columns %v", adc)
	}
	if paths, ok := adc["scan_path"].([]any); !ok || len(paths) != 1 || paths[0] != "/out/a/10_00_00.nrrd" {
		t.Fatalf("scan paths should be a list, got %#v", adc["scan_path"])
	}
	if adc["pulse_sequence_name"] != "DwiSE" || adc["dwi_modality_dwi_type"] != "adc" {
		t.Fatalf("vendor or modality column missing: %v", adc)
	}
	if adc["t1w_modality_subtraction"] != nil || adc["no_such_column"] != nil || adc["protocol"] != nil {
		t.Fatalf("absent relations must read as null: %v", adc)
	}
	if sub["t1w_modality_subtraction"] != true || sub["protocol"] != "Not full protocol. Missing: T2" {
		t.Fatalf("unexpected subtraction entry %v", sub)
	}
	if sub["scan_path"] != nil {
		t.Fatalf("series without scans should have a null scan_path, got %v", sub["scan_path"])
	}
	if len(m.WithoutScan) != 1 || m.WithoutScan[0] != "1.2.1" {
		t.Fatalf("unexpected warning list %v", m.WithoutScan)
	}
}

func TestParseSelectionRejectsUnknownModel(t *testing.T) {
	_, err := ParseSelection([]byte("Standard:\n  columns:\n    - {model_name: scanner, column_name: x}\n"))
	if !errs.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWriteIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	out, err := Write(dir, "manifest.json", []Entry{{"series_instance_uid": "1.2", "db_name": "breast"}})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var back []map[string]any
	if err := json.Unmarshal(data, &back); err != nil || len(back) != 1 || back[0]["db_name"] != "breast" {
		t.Fatalf("unexpected manifest %s (%v)", data, err)
	}
	if data[1] != '\n' || data[2] != ' ' {
		t.Fatalf("manifest should be indented: %s", data)
	}
}
