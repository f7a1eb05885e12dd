package models

import (
	"time"
)

// Event types emitted by the warehouse pipeline.
const (
	EventUnitImported    = "unit.imported"
	EventStudyClassified = "study.classified"
	EventSeriesExported  = "series.exported"
	EventRunFinished     = "run.finished"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // unit.imported, study.classified, series.exported, run.finished
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// StudyUIDs reads the study instance UIDs carried by a unit.imported event.
func (e Event) StudyUIDs() []string {
	raw, ok := e.Data["study_instance_uids"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
