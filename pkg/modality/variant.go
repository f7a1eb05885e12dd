// Package modality classifies series into imaging modalities and derives study protocols.
package modality

import (
	"context"
	"fmt"

	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Variant is one of T1W, T2W, MDixon, DWI, MIP or Undetermined.
type Variant interface {
	Kind() string
	isVariant()
}

type TimeSeries string

const (
	Single TimeSeries = "single"
	Slow   TimeSeries = "slow"
	Fast   TimeSeries = "fast"
)

// Label is the persisted name of the phase.
func (t TimeSeries) Label() string {
	if t == Fast {
		return "ultrafast"
	}
	return string(t)
}

type T1W struct {
	TimeSeries     TimeSeries
	FatSup         *string
	Subtraction    bool
	ContrastSeries string
}

type T2W struct{}

type MDixon struct {
	DixonType string
}

var dixonLabels = map[string]string{
	"IP":      "InPhase",
	"OP":      "OutPhase",
	"W":       "Water",
	"F":       "Fat",
	"4":       "All 4 variants",
	"unknown": "unknown",
}

func (m MDixon) Label() string {
	if l, ok := dixonLabels[m.DixonType]; ok {
		return l
	}
	return m.DixonType
}

type DWI struct {
	DWIType string
	BValues [2]*int64
}

type MIP struct {
	MIPType string
}

type Reason string

const (
	ReasonVendor            Reason = "vendor"
	ReasonCriticalParameter Reason = "critical_parameter"
	ReasonNoLogic           Reason = "no_logic"
)

var reasonMessages = map[Reason]string{
	ReasonVendor:            "No logic for vendor",
	ReasonCriticalParameter: "Missing information in critical parameters",
	ReasonNoLogic:           "No logic for this specific set of parameters",
}

func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return "Unknown reason"
}

type Undetermined struct {
	Reason Reason
}

func (T1W) Kind() string          { return "T1W" }
func (T2W) Kind() string          { return "T2W" }
func (MDixon) Kind() string       { return "MDixon" }
func (DWI) Kind() string          { return "DWI" }
func (MIP) Kind() string          { return "MIP" }
func (Undetermined) Kind() string { return "Undetermined" }

func (T1W) isVariant()          {}
func (T2W) isVariant()          {}
func (MDixon) isVariant()       {}
func (DWI) isVariant()          {}
func (MIP) isVariant()          {}
func (Undetermined) isVariant() {}

// Result is the classification of one series.
type Result struct {
	SeriesID          int64
	SeriesDescription *string
	// Times holds the distinct acquisition times in ascending order, never empty.
	Times   []datatypes.Time
	Variant Variant
}

// AcquisitionTime is the earliest acquisition time, or nil when there is none.
func (r Result) AcquisitionTime() *datatypes.Time {
	if len(r.Times) == 0 {
		return nil
	}
	t := r.Times[0]
	return &t
}

// Describe renders the variant with its persisted labels, as published in events.
func (r Result) Describe() string {
	switch v := r.Variant.(type) {
	case T1W:
		return fmt.Sprintf("T1W(%s)", v.TimeSeries.Label())
	case MDixon:
		return fmt.Sprintf("MDixon(%s)", v.Label())
	case DWI:
		return fmt.Sprintf("DWI(%s)", v.DWIType)
	case MIP:
		return fmt.Sprintf("MIP(%s)", v.MIPType)
	case Undetermined:
		return fmt.Sprintf("Undetermined(%s)", v.Reason)
	case nil:
		return "none"
	}
	return r.Variant.Kind()
}

const seriesDescriptionLimit = 100

func (r Result) columns() warehouse.ModalityColumns {
	return warehouse.ModalityColumns{
		SeriesID:          r.SeriesID,
		AcquisitionTime:   r.AcquisitionTime(),
		SeriesDescription: truncate(r.SeriesDescription, seriesDescriptionLimit),
	}
}

func truncate(s *string, n int) *string {
	if s == nil {
		return nil
	}
	runes := []rune(*s)
	if len(runes) <= n {
		return s
	}
	out := string(runes[:n])
	return &out
}

func label(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Persist replaces the series' variant row with r, deleting rows in the other variant tables.
func (r Result) Persist(ctx context.Context, tx *gorm.DB) error {
	cols := r.columns()
	switch v := r.Variant.(type) {
	case T1W:
		sub := v.Subtraction
		return warehouse.ReplaceVariant(ctx, tx, &warehouse.T1WModality{
			ModalityColumns: cols,
			TimeSeries:      label(v.TimeSeries.Label()),
			FatSup:          v.FatSup,
			Subtraction:     &sub,
			ContrastSeries:  label(v.ContrastSeries),
		}, r.SeriesID)
	case T2W:
		return warehouse.ReplaceVariant(ctx, tx, &warehouse.T2WModality{ModalityColumns: cols}, r.SeriesID)
	case MDixon:
		return warehouse.ReplaceVariant(ctx, tx, &warehouse.MDixonModality{
			ModalityColumns: cols,
			DixonType:       label(v.Label()),
		}, r.SeriesID)
	case DWI:
		return warehouse.ReplaceVariant(ctx, tx, &warehouse.DWIModality{
			ModalityColumns: cols,
			DWIType:         label(v.DWIType),
			BValue1:         v.BValues[0],
			BValue2:         v.BValues[1],
		}, r.SeriesID)
	case MIP:
		return warehouse.ReplaceVariant(ctx, tx, &warehouse.MIPModality{
			ModalityColumns: cols,
			MIPType:         label(v.MIPType),
		}, r.SeriesID)
	case Undetermined:
		return warehouse.ReplaceVariant(ctx, tx, &warehouse.UndeterminedModality{
			ModalityColumns: cols,
			Reason:          label(v.Reason.Message()),
		}, r.SeriesID)
	}
	return fmt.Errorf("series %d: no variant to persist", r.SeriesID)
}
