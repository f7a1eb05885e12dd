package tags

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MultiValueSeparator is the DICOM native value delimiter.
const MultiValueSeparator = `\`

var errMultiValued = errors.New("multi-valued numeric")

// Convert turns a raw header value into the Go value stored for typ.
// A nil result with a nil error means the value is absent or empty.
func Convert(raw any, typ FieldType) (any, error) {
	text, number, isNumber, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	if !isNumber && text == "" {
		return nil, nil
	}

	switch typ {
	case TypeString:
		if isNumber {
			return strconv.FormatFloat(number, 'f', -1, 64), nil
		}
		return text, nil

	case TypeInteger:
		if isNumber {
			return int64(number), nil
		}
		if strings.Contains(text, MultiValueSeparator) {
			return nil, errMultiValued
		}
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %q: %w", text, err)
		}
		return int64(f), nil

	case TypeFloat, TypeDecimal:
		if isNumber {
			return number, nil
		}
		if strings.Contains(text, MultiValueSeparator) {
			return nil, errMultiValued
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("float %q: %w", text, err)
		}
		return f, nil

	case TypeDate:
		d, err := ParseDate(text)
		if err != nil {
			return nil, err
		}
		return d, nil

	case TypeTime:
		t, err := ParseTime(text)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported field type %q", typ)
}

// normalize reduces a raw value to either trimmed text or a single number.
func normalize(raw any) (text string, number float64, isNumber bool, err error) {
	switch v := raw.(type) {
	case nil:
		return "", 0, false, nil
	case string:
		return trimValue(v), 0, false, nil
	case []string:
		parts := make([]string, 0, len(v))
		for _, s := range v {
			parts = append(parts, trimValue(s))
		}
		return strings.Trim(strings.Join(parts, MultiValueSeparator), MultiValueSeparator), 0, false, nil
	case []byte:
		return trimValue(string(v)), 0, false, nil
	case []int:
		switch len(v) {
		case 0:
			return "", 0, false, nil
		case 1:
			return "", float64(v[0]), true, nil
		}
		return "", 0, false, errMultiValued
	case []float64:
		switch len(v) {
		case 0:
			return "", 0, false, nil
		case 1:
			return "", v[0], true, nil
		}
		return "", 0, false, errMultiValued
	case int:
		return "", float64(v), true, nil
	case int64:
		return "", float64(v), true, nil
	case float64:
		return "", v, true, nil
	}
	return "", 0, false, fmt.Errorf("unsupported raw value %T", raw)
}

func trimValue(s string) string {
	return strings.Trim(s, " \x00")
}

// ParseDate parses DICOM DA values (YYYYMMDD).
func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return datatypes.Date{}, fmt.Errorf("date %q: %w", s, err)
	}
	return datatypes.Date(t), nil
}

// ParseTime parses DICOM TM values: HH, HHMM, HHMMSS, optionally with up to six fractional digits.
func ParseTime(s string) (datatypes.Time, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")

	var h, m, sec int
	var err error
	switch len(whole) {
	case 2:
		h, err = atoiRange(whole, 0, 23)
	case 4:
		if h, err = atoiRange(whole[:2], 0, 23); err == nil {
			m, err = atoiRange(whole[2:], 0, 59)
		}
	case 6:
		if h, err = atoiRange(whole[:2], 0, 23); err == nil {
			if m, err = atoiRange(whole[2:4], 0, 59); err == nil {
				sec, err = atoiRange(whole[4:], 0, 60)
			}
		}
	default:
		err = errors.New("unexpected length")
	}
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", s, err)
	}

	var nsec int
	if frac != "" {
		if len(whole) != 6 || len(frac) > 6 {
			return 0, fmt.Errorf("time %q: bad fraction", s)
		}
		micros, err := strconv.Atoi(frac + strings.Repeat("0", 6-len(frac)))
		if err != nil {
			return 0, fmt.Errorf("time %q: %w", s, err)
		}
		nsec = micros * 1000
	}
	return datatypes.NewTime(h, m, sec, nsec), nil
}

func atoiRange(s string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%d out of range", v)
	}
	return v, nil
}
