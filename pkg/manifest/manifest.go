// Package manifest lists the series a query selects, flattened into JSON records.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Entry is one series of a manifest.
type Entry map[string]any

type Manifest struct {
	Entries []Entry
	// WithoutScan lists series instance UIDs that have no exported artifact yet.
	WithoutScan []string
}

// Build runs the named query against db and flattens every selected series.
func Build(ctx context.Context, db *gorm.DB, dbName, queryName string, sel Selection) (*Manifest, error) {
	query, err := lookupQuery(queryName)
	if err != nil {
		return nil, err
	}

	var series []warehouse.Series
	err = query(db.WithContext(ctx).Model(&warehouse.Series{})).
		Preload("Study").
		Preload("Study.Protocol").
		Preload("ScanPaths", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("T1W").Preload("T2W").Preload("MDixon").Preload("DWI").Preload("MIP").Preload("Undetermined").
		Order("series.id").
		Find(&series).Error
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", queryName, err)
	}

	patients, err := loadPatients(ctx, db, series)
	if err != nil {
		return nil, err
	}
	images, err := loadFirstImages(ctx, db, series)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Entries: make([]Entry, 0, len(series))}
	for i := range series {
		s := &series[i]
		v := &view{series: s, image: images[s.ID]}
		if s.Study != nil {
			v.patient = patients[s.Study.PatientID]
		}
		entry := flatten(ctx, v, sel)
		entry["db_name"] = dbName
		m.Entries = append(m.Entries, entry)
		if len(s.ScanPaths) == 0 {
			m.WithoutScan = append(m.WithoutScan, s.SeriesInstanceUID)
		}
	}

	log := logger.Log.WithFields(logrus.Fields{
		"database": dbName,
		"query":    queryName,
		"series":   len(m.Entries),
	})
	if len(m.WithoutScan) > 0 {
		log.WithField("without_scan", m.WithoutScan).
			Warn("Some series have no exported scan yet; they are kept in the manifest")
	} else {
		log.Info("Manifest built")
	}
	return m, nil
}

func flatten(ctx context.Context, v *view, sel Selection) Entry {
	entry := Entry{}
	for _, name := range sel.sections() {
		for _, c := range sel[name].Columns {
			key := c.key(name)
			row := relations[c.ModelName](v)
			if paths, ok := row.([]warehouse.ScanPath); ok {
				if len(paths) == 0 {
					entry[key] = nil
					continue
				}
				values := make([]any, 0, len(paths))
				for i := range paths {
					value, _ := warehouse.ColumnValue(ctx, &paths[i], c.ColumnName)
					values = append(values, value)
				}
				entry[key] = values
				continue
			}
			value, _ := warehouse.ColumnValue(ctx, row, c.ColumnName)
			entry[key] = value
		}
	}
	return entry
}

func loadPatients(ctx context.Context, db *gorm.DB, series []warehouse.Series) (map[int64]*warehouse.Patient, error) {
	ids := map[int64]struct{}{}
	for _, s := range series {
		if s.Study != nil {
			ids[s.Study.PatientID] = struct{}{}
		}
	}
	out := make(map[int64]*warehouse.Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]int64, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	var patients []warehouse.Patient
	if err := db.WithContext(ctx).Where("id IN ?", keys).Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for i := range patients {
		out[patients[i].ID] = &patients[i]
	}
	return out, nil
}

// loadFirstImages returns the lowest-id image of each series with its MRI and vendor rows.
func loadFirstImages(ctx context.Context, db *gorm.DB, series []warehouse.Series) (map[int64]*warehouse.Image, error) {
	out := make(map[int64]*warehouse.Image, len(series))
	if len(series) == 0 {
		return out, nil
	}
	seriesIDs := make([]int64, 0, len(series))
	for _, s := range series {
		seriesIDs = append(seriesIDs, s.ID)
	}

	first := db.Session(&gorm.Session{NewDB: true}).Model(&warehouse.Image{}).
		Select("MIN(id)").Where("series_id IN ?", seriesIDs).Group("series_id")
	var images []warehouse.Image
	err := db.WithContext(ctx).
		Preload("MRIImage").
		Preload("MRIImage.Philips").
		Preload("MRIImage.Siemens").
		Preload("MRIImage.GE").
		Where("id IN (?)", first).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("load first images: %w", err)
	}
	for i := range images {
		out[images[i].SeriesID] = &images[i]
	}
	return out, nil
}

// Write stores entries as indented JSON at dir/name.
func Write(dir, name string, entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	logger.Log.WithField("path", out).Info("Saved manifest")
	return out, nil
}
