package modality

import (
	"context"
	"testing"

	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/datatypes"
)

func philipsImage(contrast, pulse, imageType *string, acq *datatypes.Time) warehouse.Image {
	return warehouse.Image{
		AcquisitionTime: acq,
		MRIImage: &warehouse.MRIImage{
			Philips: &warehouse.MRIImagePhilips{
				AcquisitionContrast: contrast,
				PulseSequenceName:   pulse,
				ImageType:           imageType,
			},
		},
	}
}

func TestClassifyUnknownVendor(t *testing.T) {
	for _, m := range []*string{nil, ptr("Canon Medical Systems"), ptr("")} {
		series := &warehouse.Series{
			Manufacturer: m,
			Images:       []warehouse.Image{philipsImage(ptr("T2"), ptr("TSE"), ptr(`ORIGINAL\PRIMARY\M\M\SE`), nil)},
		}
		got := Classify(context.Background(), series)
		if got.Variant != (Undetermined{Reason: ReasonVendor}) {
			t.Fatalf("manufacturer %v: expected vendor undetermined, got %#v", m, got.Variant)
		}
	}
}

func TestClassifyCriticalGate(t *testing.T) {
	ctx := context.Background()
	typ := ptr(`ORIGINAL\PRIMARY\M_SE\M\SE`)

	cases := map[string][]warehouse.Image{
		"missing pulse sequence": {philipsImage(ptr("T2"), nil, typ, nil)},
		"ambiguous contrast": {
			philipsImage(ptr("T2"), ptr("TSE"), typ, nil),
			philipsImage(ptr("T1"), ptr("TSE"), typ, nil),
		},
		"empty contrast":       {philipsImage(ptr(""), ptr("TSE"), typ, nil)},
		"broken image type":    {philipsImage(ptr("T2"), ptr("TSE"), ptr("['ORIGINAL'"), nil)},
		"no vendor rows":       {{MRIImage: &warehouse.MRIImage{}}},
		"no images whatsoever": nil,
	}
	for name, images := range cases {
		series := &warehouse.Series{Manufacturer: ptr("Philips Healthcare"), Images: images}
		got := Classify(ctx, series)
		if got.Variant != (Undetermined{Reason: ReasonCriticalParameter}) {
			t.Fatalf("%s: expected critical_parameter, got %#v", name, got.Variant)
		}
	}
}

func TestClassifyUsesFirstImageType(t *testing.T) {
	series := &warehouse.Series{
		Manufacturer: ptr("Philips Medical Systems"),
		Images: []warehouse.Image{
			philipsImage(ptr("T1"), ptr("FFE"), ptr(`ORIGINAL\PRIMARY\M_FFE\M\FFE`), ptr(at(8, 0, 0))),
			philipsImage(ptr("T1"), ptr("FFE"), ptr(`ORIGINAL\PRIMARY\IP\IP\FFE`), ptr(at(8, 0, 0))),
		},
	}
	got := Classify(context.Background(), series)
	if got.Variant != (T1W{TimeSeries: Single}) {
		t.Fatalf("expected first image type to decide, got %#v", got.Variant)
	}
}

func TestClassifyTimesAndBValues(t *testing.T) {
	img := func(b float64, acq *datatypes.Time) warehouse.Image {
		i := philipsImage(ptr("DIFFUSION"), ptr("DwiSE"), ptr(`ORIGINAL\PRIMARY\M\DIFFUSION\SE`), acq)
		i.MRIImage.DiffusionBValue = &b
		return i
	}
	series := &warehouse.Series{
		Manufacturer: ptr("Philips"),
		Images:       []warehouse.Image{img(1000, nil), img(0, nil), img(800, nil), img(0, nil)},
	}
	got := Classify(context.Background(), series)
	dwi, ok := got.Variant.(DWI)
	if !ok || dwi.DWIType != "dwi" {
		t.Fatalf("expected dwi, got %#v", got.Variant)
	}
	if dwi.BValues[0] == nil || *dwi.BValues[0] != 0 || dwi.BValues[1] == nil || *dwi.BValues[1] != 800 {
		t.Fatalf("expected b-values 0 and 800, got %v %v", dwi.BValues[0], dwi.BValues[1])
	}
	if len(got.Times) != 1 || got.Times[0] != 0 {
		t.Fatalf("series without times should carry the midnight sentinel, got %v", got.Times)
	}
}

func TestSeriesDescriptionIsTruncated(t *testing.T) {
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'é'
	}
	r := Result{SeriesID: 1, SeriesDescription: ptr(string(long)), Times: []datatypes.Time{0}}
	cols := r.columns()
	if n := len([]rune(*cols.SeriesDescription)); n != seriesDescriptionLimit {
		t.Fatalf("expected %d runes, got %d", seriesDescriptionLimit, n)
	}
}
