package tags

import (
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/sirupsen/logrus"
)

// Record maps column names to converted values. Absent values are stored as nil.
type Record map[string]any

// Extract reads every field from src. Values that are missing or fail conversion become nil.
func Extract(src Source, fields []Field) Record {
	rec := make(Record, len(fields))
	for _, f := range fields {
		raw, ok := lookup(src, f)
		if !ok {
			rec[f.Column()] = nil
			continue
		}

		value, err := Convert(raw, f.Type)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"field": f.Name,
				"tag":   f.Tag,
				"type":  f.Type,
			}).WithError(err).Debug("Tag value dropped")
			value = nil
		}
		rec[f.Column()] = value
	}
	return rec
}

func lookup(src Source, f Field) (any, bool) {
	if f.parent != nil {
		if item, ok := src.Item(*f.parent); ok {
			if raw, ok := item.Lookup(f.tag); ok {
				return raw, true
			}
		}
	}
	return src.Lookup(f.tag)
}

// String returns the column as a string when it holds one.
func (r Record) String(column string) (string, bool) {
	s, ok := r[column].(string)
	return s, ok && s != ""
}
