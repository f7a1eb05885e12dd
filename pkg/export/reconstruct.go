package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/datatypes"
)

// Metadata is attached to every reconstructed volume.
type Metadata map[string]string

// NewMetadata describes the artifact of one acquisition time.
func NewMetadata(dbName string, study *warehouse.Study, series *warehouse.Series, t datatypes.Time, now time.Time) Metadata {
	str := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	date := ""
	if series.SeriesDate != nil {
		date = time.Time(*series.SeriesDate).Format("2006-01-02")
	}
	return Metadata{
		"patient_name":             str(study.PatientName),
		"study_instance_uid":       study.StudyInstanceUID,
		"series_instance_uid":      series.SeriesInstanceUID,
		"manufacturer":             str(series.Manufacturer),
		"mri_model_name":           str(series.ManufacturerModelName),
		"date_of_creation":         now.Format("2006-01-02 15:04:05.000000"),
		"slice_thickness":          str(series.SliceThickness),
		"patient_position":         str(series.PatientPosition),
		"date_of_acquisition":      date,
		"timestamp_of_acquisition": timestamp(t),
		"database_of_origin":       dbName,
	}
}

// Reconstructor turns an ordered list of DICOM files into one volume at output.
type Reconstructor interface {
	Reconstruct(ctx context.Context, files []string, output string, meta Metadata) error
}

// CommandReconstructor runs an external converter as `<command> [args...] <output> <file>...`
// and writes the metadata next to the volume as <output>.json.
type CommandReconstructor struct {
	Path string
	Args []string
}

// NewCommandReconstructor parses a command line such as "dcm2vol --compress".
func NewCommandReconstructor(commandLine string) (*CommandReconstructor, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errs.NewConfigurationError(fmt.Errorf("reconstruct command is empty"))
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, errs.NewConfigurationError(fmt.Errorf("reconstruct command %q: %w", fields[0], err))
	}
	return &CommandReconstructor{Path: path, Args: fields[1:]}, nil
}

func (c *CommandReconstructor) Reconstruct(ctx context.Context, files []string, output string, meta Metadata) error {
	args := append(append(append([]string(nil), c.Args...), output), files...)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("%s: %w: %s", c.Path, err, strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("%s produced no output: %w", c.Path, err)
	}

	sidecar, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SidecarPath(output), sidecar, 0o644)
}

// SidecarPath names the metadata file written next to an artifact.
func SidecarPath(artifact string) string {
	return artifact + ".json"
}
