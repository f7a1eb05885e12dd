package models

import (
	"encoding/json"
	"testing"
)

func TestStudyUIDsSurvivesJSON(t *testing.T) {
	in := Event{Type: EventUnitImported, Data: map[string]interface{}{"study_instance_uids": []string{"1.2", "1.3"}}}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Event
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	uids := out.StudyUIDs()
	if len(uids) != 2 || uids[0] != "1.2" || uids[1] != "1.3" {
		t.Fatalf("unexpected uids %v", uids)
	}
	if (Event{}).StudyUIDs() != nil {
		t.Fatalf("event without uids should yield nil")
	}
}
