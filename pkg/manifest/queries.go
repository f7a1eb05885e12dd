package manifest

import (
	"fmt"
	"sort"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/gorm"
)

// Query narrows the series selected for a manifest.
type Query func(db *gorm.DB) *gorm.DB

var queries = map[string]Query{
	"all": func(db *gorm.DB) *gorm.DB { return db },

	"field_strength_3t": fieldStrength3T,

	"adc_3t": func(db *gorm.DB) *gorm.DB {
		adc := subquery(db).Model(&warehouse.DWIModality{}).Select("series_id").Where("dwi_type = ?", "adc")
		return fieldStrength3T(db).Where("series.id IN (?)", adc)
	},

	"t1_subtraction_before_2020": func(db *gorm.DB) *gorm.DB {
		cutoff := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		before := subquery(db).Model(&warehouse.Study{}).Select("id").Where("study_date < ?", cutoff)
		subtraction := subquery(db).Model(&warehouse.T1WModality{}).Select("series_id").Where("subtraction = ?", true)
		return db.Where("series.study_id IN (?)", before).Where("series.id IN (?)", subtraction)
	},
}

func fieldStrength3T(db *gorm.DB) *gorm.DB {
	images := subquery(db).Model(&warehouse.Image{}).
		Select("image.series_id").
		Joins("JOIN mri_image ON mri_image.image_id = image.id").
		Where("mri_image.magnetic_field_strength = ?", "3")
	return db.Where("series.id IN (?)", images)
}

func subquery(db *gorm.DB) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true})
}

// QueryNames lists the registered queries.
func QueryNames() []string {
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupQuery(name string) (Query, error) {
	q, ok := queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q, available: %v", name, QueryNames())
	}
	return q, nil
}
