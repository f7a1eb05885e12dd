package modality

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

const FullProtocol = "Full protocol"

// Counts tallies the protocol-relevant variants of one study.
type Counts struct {
	T1            int `json:"t1_count"`
	T2            int `json:"t2_count"`
	DWI           int `json:"dwi_count"`
	SubtractionT1 int `json:"subtraction_t1_count"`
	UltrafastT1   int `json:"ultrafast_t1_count"`
}

func Count(results []Result) Counts {
	var c Counts
	for _, r := range results {
		switch v := r.Variant.(type) {
		case T1W:
			switch {
			case v.Subtraction:
				c.SubtractionT1++
			case v.TimeSeries == Fast:
				c.UltrafastT1++
			default:
				c.T1++
			}
		case T2W:
			c.T2++
		case DWI:
			c.DWI++
		}
	}
	return c
}

// Missing names the unmet protocol requirements in fixed order.
func (c Counts) Missing() []string {
	var missing []string
	if c.T1 < 2 {
		missing = append(missing, "T1")
	}
	if c.T2 < 1 {
		missing = append(missing, "T2")
	}
	if c.DWI < 1 {
		missing = append(missing, "DWI")
	}
	if c.UltrafastT1 < 1 {
		missing = append(missing, "Ultrafast T1")
	}
	return missing
}

func (c Counts) Verdict() string {
	missing := c.Missing()
	if len(missing) == 0 {
		return FullProtocol
	}
	return fmt.Sprintf("Not full protocol. Missing: %s", strings.Join(missing, ", "))
}

// SortByTime orders results by (times missing, times), comparing the ascending time lists
// element by element so a list sorts before its extensions. Ties keep the input order.
func SortByTime(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		ti, tj := results[i].Times, results[j].Times
		if len(ti) == 0 || len(tj) == 0 {
			return len(ti) > 0 && len(tj) == 0
		}
		return slices.Compare(ti, tj) < 0
	})
}

// LabelContrast names the plain T1W results in their current order: the first is the
// pre-contrast scan, the rest post-contrast_1, post-contrast_2 and so on.
func LabelContrast(results []Result) {
	n := 0
	for i := range results {
		t1, ok := results[i].Variant.(T1W)
		if !ok || t1.Subtraction || t1.TimeSeries == Fast {
			continue
		}
		switch {
		case n > 0:
			t1.ContrastSeries = fmt.Sprintf("post-contrast_%d", n)
		case t1.TimeSeries == Slow:
			t1.ContrastSeries = "pre-contrast_post-contrast"
		default:
			t1.ContrastSeries = "pre-contrast"
		}
		results[i].Variant = t1
		n++
	}
}

// Determine sorts the study's results, labels the contrast series and returns the counts and
// protocol verdict.
func Determine(results []Result) (Counts, string) {
	SortByTime(results)
	counts := Count(results)
	LabelContrast(results)
	return counts, counts.Verdict()
}
