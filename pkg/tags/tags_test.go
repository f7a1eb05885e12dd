package tags

import (
	"strings"
	"testing"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gorm.io/datatypes"
)

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"PatientName":                    "patient_name",
		"SOPInstanceUID":                 "sop_instance_uid",
		"StudyInstanceUID":               "study_instance_uid",
		"PatientID":                      "patient_id",
		"DiffusionBValue":                "diffusion_b_value",
		"UnknownKeyForSinwasDistinction": "unknown_key_for_sinwas_distinction",
		"ManufacturerModelName":          "manufacturer_model_name",
		"Modality":                       "modality",
	}
	for in, want := range cases {
		if got := ToSnakeCase(in); got != want {
			t.Fatalf("ToSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTagForms(t *testing.T) {
	want := tag.Tag{Group: 0x0010, Element: 0x0010}
	for _, in := range []string{"0x00100010", "00100010", "0010,0010", "(0010,0010)", " 0010, 0010 "} {
		got, err := ParseTag(in)
		if err != nil {
			t.Fatalf("ParseTag(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTag(%q) = %v", in, got)
		}
	}
	if _, err := ParseTag("0010"); err == nil {
		t.Fatalf("expected error for short tag")
	}
}

func TestConvertRules(t *testing.T) {
	if v, err := Convert([]string{""}, TypeString); err != nil || v != nil {
		t.Fatalf("empty string should become nil, got %v %v", v, err)
	}
	if v, _ := Convert([]string{"ORIGINAL", "PRIMARY", "M_FFE "}, TypeString); v != `ORIGINAL\PRIMARY\M_FFE` {
		t.Fatalf("multi-valued string join mismatch: %v", v)
	}
	if v, _ := Convert([]string{"12"}, TypeInteger); v != int64(12) {
		t.Fatalf("integer conversion mismatch: %v", v)
	}
	if v, _ := Convert([]int{3}, TypeInteger); v != int64(3) {
		t.Fatalf("integer from []int mismatch: %v", v)
	}
	if _, err := Convert([]int{1, 2}, TypeInteger); err == nil {
		t.Fatalf("multi-valued numeric must fail")
	}
	if v, _ := Convert([]string{"1.5"}, TypeFloat); v != 1.5 {
		t.Fatalf("float conversion mismatch: %v", v)
	}
	if v, _ := Convert([]byte("2.25\x00"), TypeFloat); v != 2.25 {
		t.Fatalf("float from bytes mismatch: %v", v)
	}
	if _, err := Convert([]string{"abc"}, TypeInteger); err == nil {
		t.Fatalf("bad integer must fail")
	}
	if v, _ := Convert([]float64{3.0}, TypeString); v != "3" {
		t.Fatalf("numeric to string mismatch: %v", v)
	}
}

func TestParseTimeForms(t *testing.T) {
	cases := map[string]datatypes.Time{
		"10":            datatypes.NewTime(10, 0, 0, 0),
		"1015":          datatypes.NewTime(10, 15, 0, 0),
		"101530":        datatypes.NewTime(10, 15, 30, 0),
		"101530.5":      datatypes.NewTime(10, 15, 30, 500000000),
		"101530.123456": datatypes.NewTime(10, 15, 30, 123456000),
	}
	for in, want := range cases {
		got, err := ParseTime(in)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "1", "2561", "10153", "101530.1234567", "ab"} {
		if _, err := ParseTime(bad); err == nil {
			t.Fatalf("ParseTime(%q) expected error", bad)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("20190412")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got := time.Time(d).Format("2006-01-02"); got != "2019-04-12" {
		t.Fatalf("unexpected date %s", got)
	}
	if _, err := ParseDate("2019-04-12"); err == nil {
		t.Fatalf("expected error for dashed date")
	}
}

func TestDefaultMappingLoads(t *testing.T) {
	m, err := DefaultMapping()
	if err != nil {
		t.Fatalf("default mapping: %v", err)
	}
	for _, entity := range []string{EntityPatient, EntityStudy, EntitySeries, EntityImage, EntityMRIImage} {
		if _, ok := m.UniqueField(entity); !ok {
			t.Fatalf("%s has no unique field", entity)
		}
	}
	f, _ := m.UniqueField(EntityImage)
	if f.Column() != "sop_instance_uid" {
		t.Fatalf("unexpected image unique column %s", f.Column())
	}
	if len(m.Fields(EntityMRIImagePhilips)) == 0 {
		t.Fatalf("philips fields missing")
	}
}

func TestMappingRejectsBadConfig(t *testing.T) {
	cases := []string{
		"Patient:\n  - {name: patient_name, tag: \"0010,0010\", type: String}\n",
		"Patient:\n  - {name: PatientName, tag: \"0010,0010\", type: Blob}\n",
		"Patient:\n  - {name: PatientName, tag: \"zz\", type: String}\n",
		"",
	}
	for _, in := range cases {
		_, err := ParseMapping([]byte(in))
		if !errs.IsConfigurationError(err) {
			t.Fatalf("expected configuration error for %q, got %v", in, err)
		}
	}
}

func TestExtractWithSequenceFallback(t *testing.T) {
	m, err := ParseMapping([]byte(strings.Join([]string{
		"MRIImagePhilips:",
		`  - {name: AcquisitionContrast, tag: "0008,9209", type: String, parent_tag: "0018,9226"}`,
		`  - {name: PulseSequenceName, tag: "0018,9005", type: String, parent_tag: "0018,9226"}`,
		`  - {name: WaterFatShift, tag: "2001,1022", type: Float}`,
		`  - {name: ImageType, tag: "0008,0008", type: String}`,
		"",
	}, "\n")))
	if err != nil {
		t.Fatalf("parse mapping: %v", err)
	}

	contrast := tag.Tag{Group: 0x0008, Element: 0x9209}
	pulse := tag.Tag{Group: 0x0018, Element: 0x9005}
	shift := tag.Tag{Group: 0x2001, Element: 0x1022}
	imageType := tag.Tag{Group: 0x0008, Element: 0x0008}
	src := MapSource{
		Values: map[tag.Tag]any{
			pulse:     []string{"T1FFE"},
			shift:     []string{"not-a-number"},
			imageType: []string{"ORIGINAL", "PRIMARY"},
		},
		Items: map[tag.Tag]MapSource{
			{Group: 0x0018, Element: 0x9226}: {Values: map[tag.Tag]any{contrast: []string{"T1"}}},
		},
	}

	rec := Extract(src, m.Fields(EntityMRIImagePhilips))
	if rec["acquisition_contrast"] != "T1" {
		t.Fatalf("expected nested value, got %v", rec["acquisition_contrast"])
	}
	if rec["pulse_sequence_name"] != "T1FFE" {
		t.Fatalf("expected top-level fallback, got %v", rec["pulse_sequence_name"])
	}
	if v, ok := rec["water_fat_shift"]; !ok || v != nil {
		t.Fatalf("conversion failure should store nil, got %v", v)
	}
	if rec["image_type"] != `ORIGINAL\PRIMARY` {
		t.Fatalf("unexpected image type %v", rec["image_type"])
	}
}
