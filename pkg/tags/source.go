package tags

import (
	"fmt"
	"os"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Source is a parsed metadata header.
type Source interface {
	// Lookup returns the raw value stored under t.
	Lookup(t tag.Tag) (any, bool)
	// Item returns the first item of the sequence stored under parent.
	Item(parent tag.Tag) (Source, bool)
}

// ReadFile parses the header of a DICOM file, skipping pixel data.
func ReadFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.NewMalformedSource(path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errs.NewMalformedSource(path, err)
	}

	ds, err := dicom.Parse(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, errs.NewMalformedSource(path, fmt.Errorf("parse: %w", err))
	}
	return elementSource(ds.Elements), nil
}

// FromDataset wraps an already parsed dataset.
func FromDataset(ds dicom.Dataset) Source {
	return elementSource(ds.Elements)
}

type elementSource []*dicom.Element

func (s elementSource) find(t tag.Tag) *dicom.Element {
	for _, el := range s {
		if el != nil && el.Tag == t {
			return el
		}
	}
	return nil
}

func (s elementSource) Lookup(t tag.Tag) (any, bool) {
	el := s.find(t)
	if el == nil || el.Value == nil {
		return nil, false
	}
	return el.Value.GetValue(), true
}

func (s elementSource) Item(parent tag.Tag) (Source, bool) {
	el := s.find(parent)
	if el == nil || el.Value == nil {
		return nil, false
	}
	items, ok := el.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok || len(items) == 0 || items[0] == nil {
		return nil, false
	}
	nested, ok := items[0].GetValue().([]*dicom.Element)
	if !ok {
		return nil, false
	}
	return elementSource(nested), true
}

// MapSource is an in-memory Source keyed by tag.
type MapSource struct {
	Values map[tag.Tag]any
	Items  map[tag.Tag]MapSource
}

func (m MapSource) Lookup(t tag.Tag) (any, bool) {
	v, ok := m.Values[t]
	return v, ok
}

func (m MapSource) Item(parent tag.Tag) (Source, bool) {
	item, ok := m.Items[parent]
	if !ok {
		return nil, false
	}
	return item, true
}
