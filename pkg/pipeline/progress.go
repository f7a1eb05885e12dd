package pipeline

import (
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

// Progress logs every finished batch of stage and records it in the metrics, then calls next
// when set.
func Progress(stage string, next func(BatchReport)) func(BatchReport) {
	return func(r BatchReport) {
		metrics.ObserveBatch(stage, r.Processed, r.Failed, r.Skipped)
		logger.Log.WithFields(logrus.Fields{
			"stage":      stage,
			"batch":      r.Index + 1,
			"batch_size": r.Size,
			"processed":  r.Processed,
			"failed":     r.Failed,
			"skipped":    r.Skipped,
			"elapsed":    r.Elapsed.Round(time.Millisecond).String(),
		}).Info("Batch done")
		if next != nil {
			next(r)
		}
	}
}
