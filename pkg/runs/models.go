package runs

import (
	"time"

	"gorm.io/datatypes"
)

const (
	KindImport   = "import"
	KindClassify = "classify"
	KindExport   = "export"
	KindManifest = "manifest"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one invocation of a pipeline stage.
type Run struct {
	ID         string            `json:"id" gorm:"primaryKey;column:id;type:varchar(36)"`
	Kind       string            `json:"kind" gorm:"column:kind;type:varchar(16);index"`
	Target     string            `json:"target" gorm:"column:target"`
	Status     string            `json:"status" gorm:"column:status;type:varchar(16)"`
	Options    datatypes.JSONMap `json:"options,omitempty" gorm:"column:options"`
	Processed  int               `json:"processed" gorm:"column:processed"`
	Failed     int               `json:"failed" gorm:"column:failed"`
	Skipped    int               `json:"skipped" gorm:"column:skipped"`
	Batches    int               `json:"batches" gorm:"column:batches"`
	Error      string            `json:"error,omitempty" gorm:"column:error"`
	StartedAt  time.Time         `json:"started_at" gorm:"column:started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty" gorm:"column:finished_at"`
}

func (Run) TableName() string {
	return "warehouse_runs"
}
