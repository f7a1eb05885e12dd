package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestTaxonomyThroughWrapping(t *testing.T) {
	base := errors.New("boom")

	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"malformed", NewMalformedSource("/x/1.dcm", base), IsMalformedSource},
		{"integrity", NewIntegrityFailure("patient", base), IsIntegrityFailure},
		{"validation", NewValidationFailure("series", base), IsValidationFailure},
		{"configuration", NewConfigurationError(base), IsConfigurationError},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("unit /x: %w", tc.err)
		if !tc.check(wrapped) {
			t.Fatalf("%s: expected wrapped error to match its kind", tc.name)
		}
		if !errors.Is(wrapped, base) {
			t.Fatalf("%s: expected reason to be reachable through Unwrap", tc.name)
		}
	}

	if IsIntegrityFailure(NewValidationFailure("series", base)) {
		t.Fatalf("validation failure must not classify as integrity failure")
	}
}

func TestMalformedSourceMessageCarriesPath(t *testing.T) {
	err := NewMalformedSource("/data/a.dcm", errors.New("no preamble"))
	if got := err.Error(); got != "malformed source /data/a.dcm: no preamble" {
		t.Fatalf("unexpected message %q", got)
	}
}
