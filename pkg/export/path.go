package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/datatypes"
)

// Extension maps an export format to its file suffix.
func Extension(format string) (string, error) {
	switch strings.ToLower(format) {
	case "nrrd":
		return ".nrrd", nil
	case "nifti":
		return ".nii.gz", nil
	}
	return "", errs.NewConfigurationError(fmt.Errorf("cannot export to format %q", format))
}

// OutputPath lays artifacts out as <root>/<db>/<patient>/<study uid>/<series uid>/<HH_MM_SS><ext>.
func OutputPath(root, dbName string, study *warehouse.Study, series *warehouse.Series, t datatypes.Time, ext string) string {
	patient := "unknown"
	if study.PatientName != nil && *study.PatientName != "" {
		patient = *study.PatientName
	}
	return filepath.Join(root,
		segment(dbName),
		segment(patient),
		segment(study.StudyInstanceUID),
		segment(series.SeriesInstanceUID),
		clock(t, "_")+ext)
}

func segment(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(s)
}

func clock(t datatypes.Time, sep string) string {
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d%s%02d%s%02d", h, sep, m, sep, s)
}

// timestamp renders t as HH:MM:SS with microseconds when present.
func timestamp(t datatypes.Time) string {
	out := clock(t, ":")
	if us := (time.Duration(t) % time.Second) / time.Microsecond; us != 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	return out
}
