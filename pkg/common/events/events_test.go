package events

import (
	"context"
	"testing"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
)

func TestFromConfigSelectsSink(t *testing.T) {
	p, err := FromConfig(context.Background(), &config.Config{EventSink: "none"})
	if err != nil {
		t.Fatalf("none sink: %v", err)
	}
	if _, ok := p.(Nop); !ok {
		t.Fatalf("expected Nop publisher, got %T", p)
	}

	_, err = FromConfig(context.Background(), &config.Config{EventSink: "carrier-pigeon"})
	if !errs.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRecorderStampsEvents(t *testing.T) {
	r := &Recorder{}
	PublishQuietly(context.Background(), r, models.EventStudyClassified, map[string]interface{}{"study_id": 1})
	PublishQuietly(context.Background(), r, models.EventSeriesExported, nil)

	got := r.OfType(models.EventStudyClassified)
	if len(got) != 1 {
		t.Fatalf("expected one classified event, got %d", len(got))
	}
	if got[0].ID == "" || got[0].Source != Source || got[0].Timestamp.IsZero() {
		t.Fatalf("event not stamped: %+v", got[0])
	}
}
