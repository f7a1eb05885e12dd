package modality

import (
	"strings"

	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/datatypes"
)

// Input is what a vendor decision function sees of one series.
type Input struct {
	Tags  CriticalTags
	Times []datatypes.Time
	// Rows are the vendor extension rows of the series' images, in image order.
	Rows []any
}

func (in Input) gap() int64 { return MeanGapSeconds(in.Times) }

type strategy struct {
	critical []string
	decide   func(Input) Variant
}

// strategies maps a vendor to its decision table. Adding a vendor means adding an entry here
// and to warehouse.Vendors.
var strategies = map[warehouse.Vendor]strategy{
	warehouse.VendorPhilips: {
		critical: []string{"acquisition_contrast", "pulse_sequence_name", imageTypeColumn},
		decide:   decidePhilips,
	},
	warehouse.VendorSiemens: {
		critical: []string{"sequence_name", imageTypeColumn},
		decide:   decideSiemens,
	},
	warehouse.VendorGE: {
		critical: []string{"pulse_sequence", imageTypeColumn},
		decide:   decideGE,
	},
}

func noLogic() Variant { return Undetermined{Reason: ReasonNoLogic} }

// timeSeriesByGap applies the slow/single/fast gap rule to a multi-time series.
func timeSeriesByGap(gap int64) TimeSeries {
	switch {
	case gap > 30:
		return Slow
	case gap == 1:
		return Single
	}
	return Fast
}

func decidePhilips(in Input) Variant {
	it := in.Tags.ImageType

	switch in.Tags.String("acquisition_contrast") {
	case "DIFFUSION":
		if len(it) > 0 {
			if it.At(2) == "ADC" || it.At(3) == "ADC" {
				return DWI{DWIType: "adc"}
			}
			if it.At(2) == "EADC" || it.At(3) == "EADC" {
				return DWI{DWIType: "eadc"}
			}
		}
		return DWI{DWIType: "dwi"}

	case "T2":
		return T2W{}

	case "T1":
		if len(it) == 0 {
			return noLogic()
		}
		if len(it) == 4 {
			return MDixon{DixonType: "4"}
		}
		switch it.At(2) {
		case "IP", "OP", "F":
			return MDixon{DixonType: it.At(2)}
		case "W":
			if len(in.Times) > 1 {
				if in.gap() == 1 {
					// one acquisition stamped twice, one second apart
					return MDixon{DixonType: "W"}
				}
				return T1W{TimeSeries: Fast}
			}
			return MDixon{DixonType: "W"}
		}

		if it.Equal("ORIGINAL", "PRIMARY", "M_FFE", "M", "FFE") || it.Equal("ORIGINAL", "PRIMARY", "M_SE", "M", "SE") {
			if len(in.Times) > 1 {
				return T1W{TimeSeries: timeSeriesByGap(in.gap())}
			}
			if v, ok := firstFloat(in.Rows, "unknown_key_for_sinwas_distinction"); ok && v > 1 {
				return T1W{TimeSeries: Single, Subtraction: true}
			}
			return T1W{TimeSeries: Single}
		}

		if p := it.At(2); p == "PROJECTION IMAGE" || p == "PROJECTION IMAG" {
			return MIP{MIPType: "t1w"}
		}
	}
	return noLogic()
}

var (
	siemensT2Sequences = map[string]bool{
		"*tse2d1_21": true, "*tir2d1_17": true, "*tse2d1_19": true,
		"*tse2d1_17": true, "*tse2d1_15": true, "*tse2d1_11": true,
		"*tse2d1_23": true, "*tir2d1_11": true, "*tseR2d1rs19": true,
	}
	siemensT1Sequences = map[string]bool{"*fl3d1": true, "*tse2d1_4": true, "*fl3d1_ns": true}
)

func decideSiemens(in Input) Variant {
	it := in.Tags.ImageType
	sequence := in.Tags.String("sequence_name")

	if len(it) > 0 && it.At(2) == "DIFFUSSION" {
		if it.At(3) == "ADC" {
			return DWI{DWIType: "adc"}
		}
		return DWI{DWIType: "dwi"}
	}

	if siemensT2Sequences[sequence] {
		return T2W{}
	}

	if siemensT1Sequences[sequence] {
		if len(it) > 0 {
			if strings.Contains(it.At(3), "MIP") {
				return MIP{MIPType: "t1w"}
			}
			switch it.Last() {
			case "SUB":
				if len(in.Times) > 1 {
					return T1W{TimeSeries: Slow, Subtraction: true}
				}
				return T1W{TimeSeries: Single, Subtraction: true}
			case "NORM":
				return T1W{TimeSeries: Single}
			}
		}
		if len(in.Times) > 1 {
			return T1W{TimeSeries: timeSeriesByGap(in.gap())}
		}
		return T1W{TimeSeries: Single}
	}
	return noLogic()
}

var geT1Codes = map[int64]bool{1: true, 3: true, 20: true, 22: true, 66: true, 85: true, 104: true}

func decideGE(in Input) Variant {
	it := in.Tags.ImageType
	code, _ := in.Tags.Int("pulse_sequence")

	switch {
	case code == 0:
		if len(it) > 0 && it.Last() == "ADC" {
			return DWI{DWIType: "adc"}
		}
		return DWI{DWIType: "dwi"}

	case code == 19 || code == 56:
		return T2W{}

	case geT1Codes[code]:
		if len(it) > 0 && it.At(0) == "DERIVED" {
			if it.At(1) == "PRIMARY" {
				if it.At(2) == "DIXON" {
					if it.At(3) == "WATER" {
						return MDixon{DixonType: "W"}
					}
					return MDixon{DixonType: "unknown"}
				}
				if it.Last() == "SUBTRACT" {
					return T1W{TimeSeries: Single, Subtraction: true}
				}
			}
			switch it.Last() {
			case "MIP":
				return MIP{MIPType: "t1w"}
			case "PROCESSED":
				return T1W{TimeSeries: Single}
			}
		}
		if len(in.Times) > 1 {
			gap := in.gap()
			switch {
			case gap > 30:
				return T1W{TimeSeries: Slow}
			case gap == 1 && len(in.Times) == 2:
				return T1W{TimeSeries: Single}
			}
			return T1W{TimeSeries: Fast}
		}
		return T1W{TimeSeries: Single}
	}
	return noLogic()
}
