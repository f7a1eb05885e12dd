package tags

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/suyashkumar/dicom/pkg/tag"
)

var pascalCase = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)

func IsPascalCase(s string) bool {
	return pascalCase.MatchString(s)
}

// ToSnakeCase maps a PascalCase field name onto its column name.
// An uppercase letter opens a new word when it follows a lowercase letter or digit,
// or when it is not the first letter and starts a lowercase run, so acronyms stay together:
// SOPInstanceUID becomes sop_instance_uid.
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ParseTag accepts "0x00100010", "00100010", "0010,0010" and "(0010,0010)".
func ParseTag(s string) (tag.Tag, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")

	var group, element string
	if idx := strings.Index(raw, ","); idx >= 0 {
		group, element = raw[:idx], raw[idx+1:]
	} else {
		raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
		if len(raw) != 8 {
			return tag.Tag{}, fmt.Errorf("tag %q must have 8 hex digits", s)
		}
		group, element = raw[:4], raw[4:]
	}

	g, err := strconv.ParseUint(group, 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("tag %q: bad group: %w", s, err)
	}
	e, err := strconv.ParseUint(element, 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("tag %q: bad element: %w", s, err)
	}
	return tag.Tag{Group: uint16(g), Element: uint16(e)}, nil
}
