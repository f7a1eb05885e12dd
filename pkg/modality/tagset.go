package modality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/tags"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const imageTypeColumn = "image_type"

// ImageType is the parsed multi-valued ImageType tag. Out-of-range positions read as "".
type ImageType []string

func (it ImageType) At(i int) string {
	if i < 0 || i >= len(it) {
		return ""
	}
	return it[i]
}

func (it ImageType) Last() string {
	return it.At(len(it) - 1)
}

func (it ImageType) Equal(other ...string) bool {
	if len(it) != len(other) {
		return false
	}
	for i := range it {
		if it[i] != other[i] {
			return false
		}
	}
	return true
}

// ParseImageType accepts the stored backslash form ("ORIGINAL\PRIMARY\M") and the
// bracketed list form ("['ORIGINAL', 'PRIMARY', 'M']").
func ParseImageType(raw string) (ImageType, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty image type")
	}
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("unterminated image type list %q", raw)
		}
		body := strings.TrimSpace(s[1 : len(s)-1])
		if body == "" {
			return ImageType{}, nil
		}
		var out ImageType
		for _, part := range strings.Split(body, ",") {
			part = strings.TrimSpace(part)
			if len(part) < 2 || (part[0] != '\'' && part[0] != '"') || part[len(part)-1] != part[0] {
				return nil, fmt.Errorf("image type element %q is not quoted", part)
			}
			out = append(out, part[1:len(part)-1])
		}
		return out, nil
	}
	parts := strings.Split(s, tags.MultiValueSeparator)
	out := make(ImageType, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out, nil
}

// CriticalTags holds the reduced critical tag values of one series.
type CriticalTags struct {
	Values    map[string]any
	ImageType ImageType
}

// String returns a string critical tag.
func (c CriticalTags) String(column string) string {
	s, _ := c.Values[column].(string)
	return s
}

// Int returns an integer critical tag.
func (c CriticalTags) Int(column string) (int64, bool) {
	switch v := c.Values[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Missing reports whether any critical tag is null or an empty string.
func (c CriticalTags) Missing() bool {
	for _, v := range c.Values {
		if v == nil {
			return true
		}
		if s, ok := v.(string); ok && s == "" {
			return true
		}
	}
	return false
}

// reduceCritical reduces each column across the vendor rows: no value is null, image_type
// takes the first non-null occurrence, and any other column with more than one distinct
// value is null.
func reduceCritical(ctx context.Context, seriesID int64, rows []any, columns []string) CriticalTags {
	out := CriticalTags{Values: make(map[string]any, len(columns))}
	for _, column := range columns {
		values := distinctValues(ctx, rows, column)
		switch {
		case len(values) == 0:
			out.Values[column] = nil
		case column == imageTypeColumn:
			raw, _ := values[0].(string)
			parsed, err := ParseImageType(raw)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"series_id": seriesID, "value": raw}).
					WithError(err).Debug("Unparseable image type")
				out.Values[column] = nil
				continue
			}
			out.ImageType = parsed
			out.Values[column] = raw
		case len(values) > 1:
			logger.Log.WithFields(logrus.Fields{
				"series_id": seriesID,
				"tag":       column,
				"values":    values,
			}).Debug("Ambiguous critical tag")
			out.Values[column] = nil
		default:
			out.Values[column] = values[0]
		}
	}
	return out
}

// distinctValues returns the distinct non-null values of column in row order.
func distinctValues(ctx context.Context, rows []any, column string) []any {
	var out []any
	seen := make(map[any]struct{})
	for _, row := range rows {
		v, ok := warehouse.ColumnValue(ctx, row, column)
		if !ok || v == nil {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// AcquisitionTimes returns the distinct non-null times of images in ascending order. A
// series without any gets a single midnight sentinel.
func AcquisitionTimes(images []warehouse.Image) []datatypes.Time {
	times := DistinctTimes(images)
	if len(times) == 0 {
		return []datatypes.Time{0}
	}
	return times
}

// DistinctTimes returns the distinct non-null acquisition times in ascending order.
func DistinctTimes(images []warehouse.Image) []datatypes.Time {
	seen := make(map[datatypes.Time]struct{})
	var times []datatypes.Time
	for _, img := range images {
		if img.AcquisitionTime == nil {
			continue
		}
		t := *img.AcquisitionTime
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}

// MeanGapSeconds is the floor of the mean difference between consecutive times, in seconds.
func MeanGapSeconds(times []datatypes.Time) int64 {
	if len(times) < 2 {
		return 0
	}
	span := time.Duration(times[len(times)-1] - times[0])
	return int64(math.Floor(span.Seconds() / float64(len(times)-1)))
}

// firstFloat returns the first non-null numeric value of column in row order.
func firstFloat(rows []any, column string) (float64, bool) {
	for _, row := range rows {
		v, ok := warehouse.ColumnValue(context.Background(), row, column)
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		}
	}
	return 0, false
}
