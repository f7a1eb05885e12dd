package manifest

import "github.com/NKI-AI/dicom-warehouse/pkg/warehouse"

// view is one series with the rows its manifest entry may read.
type view struct {
	series  *warehouse.Series
	patient *warehouse.Patient
	image   *warehouse.Image
}

func (v *view) mri() *warehouse.MRIImage {
	if v.image == nil {
		return nil
	}
	return v.image.MRIImage
}

// relations resolves a model name to the row read for a series. One-to-many relations
// resolve to their first row, except scan_path which yields every row.
var relations = map[string]func(v *view) any{
	"series":  func(v *view) any { return v.series },
	"study":   func(v *view) any { return v.series.Study },
	"patient": func(v *view) any { return v.patient },
	"image":   func(v *view) any { return v.image },
	"mri_image": func(v *view) any {
		return v.mri()
	},
	"mri_image_philips": func(v *view) any {
		if m := v.mri(); m != nil {
			return m.Philips
		}
		return nil
	},
	"mri_image_siemens": func(v *view) any {
		if m := v.mri(); m != nil {
			return m.Siemens
		}
		return nil
	},
	"mri_image_ge": func(v *view) any {
		if m := v.mri(); m != nil {
			return m.GE
		}
		return nil
	},
	"scan_path":             func(v *view) any { return v.series.ScanPaths },
	"t1w_modality":          func(v *view) any { return v.series.T1W },
	"t2w_modality":          func(v *view) any { return v.series.T2W },
	"mdixon_modality":       func(v *view) any { return v.series.MDixon },
	"dwi_modality":          func(v *view) any { return v.series.DWI },
	"mip_modality":          func(v *view) any { return v.series.MIP },
	"undetermined_modality": func(v *view) any { return v.series.Undetermined },
	"study_protocol": func(v *view) any {
		if v.series.Study == nil {
			return nil
		}
		return v.series.Study.Protocol
	},
}
