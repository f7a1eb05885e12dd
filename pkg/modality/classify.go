package modality

import (
	"context"
	"sort"

	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
)

// Classify decides the variant of one series. The series must carry its images with their
// MRI and vendor rows loaded.
func Classify(ctx context.Context, series *warehouse.Series) Result {
	res := Result{
		SeriesID:          series.ID,
		SeriesDescription: series.SeriesDescription,
		Times:             AcquisitionTimes(series.Images),
	}

	vendor, ok := warehouse.DetectVendor(series.Manufacturer)
	strat, known := strategies[vendor]
	if !ok || !known {
		res.Variant = Undetermined{Reason: ReasonVendor}
		return res
	}

	rows := vendorRows(vendor, series.Images)
	critical := reduceCritical(ctx, series.ID, rows, strat.critical)
	if critical.Missing() {
		res.Variant = Undetermined{Reason: ReasonCriticalParameter}
		return res
	}

	v := strat.decide(Input{Tags: critical, Times: res.Times, Rows: rows})
	if dwi, ok := v.(DWI); ok {
		dwi.BValues = bValues(series.Images)
		v = dwi
	}
	res.Variant = v
	return res
}

func vendorRows(vendor warehouse.Vendor, images []warehouse.Image) []any {
	var rows []any
	for _, img := range images {
		if row := vendor.Row(img.MRIImage); row != nil {
			rows = append(rows, row)
		}
	}
	return rows
}

// bValues returns the two lowest distinct diffusion b-values of the series.
func bValues(images []warehouse.Image) [2]*int64 {
	seen := make(map[int64]struct{})
	var values []int64
	for _, img := range images {
		if img.MRIImage == nil || img.MRIImage.DiffusionBValue == nil {
			continue
		}
		b := int64(*img.MRIImage.DiffusionBValue)
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		values = append(values, b)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	var out [2]*int64
	for i := 0; i < len(values) && i < 2; i++ {
		b := values[i]
		out[i] = &b
	}
	return out
}
