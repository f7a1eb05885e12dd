package tags

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gopkg.in/yaml.v3"
)

type FieldType string

const (
	TypeString  FieldType = "String"
	TypeInteger FieldType = "Integer"
	TypeFloat   FieldType = "Float"
	TypeDecimal FieldType = "Decimal"
	TypeDate    FieldType = "Date"
	TypeTime    FieldType = "Time"
)

func (t FieldType) Supported() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeDecimal, TypeDate, TypeTime:
		return true
	}
	return false
}

// Entity names understood by the importer.
const (
	EntityPatient         = "Patient"
	EntityStudy           = "Study"
	EntitySeries          = "Series"
	EntityImage           = "Image"
	EntityMRIImage        = "MRIImage"
	EntityMRIImagePhilips = "MRIImagePhilips"
	EntityMRIImageSiemens = "MRIImageSiemens"
	EntityMRIImageGE      = "MRIImageGE"
)

type Field struct {
	Name      string    `yaml:"name"`
	Tag       string    `yaml:"tag"`
	Type      FieldType `yaml:"type"`
	ParentTag string    `yaml:"parent_tag,omitempty"`
	Length    int       `yaml:"length,omitempty"`
	Unique    bool      `yaml:"unique,omitempty"`
	NotNull   bool      `yaml:"not_null,omitempty"`

	tag    tag.Tag
	parent *tag.Tag
}

func (f Field) Column() string {
	return ToSnakeCase(f.Name)
}

// Mapping is entity name -> ordered fields.
type Mapping map[string][]Field

//go:embed default_mapping.yaml
var defaultMappingYAML []byte

// LoadMapping reads the mapping at path, or the compiled-in defaults when path is empty.
func LoadMapping(path string) (Mapping, error) {
	if path == "" {
		return DefaultMapping()
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errs.NewConfigurationError(fmt.Errorf("read tag mapping: %w", err))
	}
	return ParseMapping(content)
}

func DefaultMapping() (Mapping, error) {
	return ParseMapping(defaultMappingYAML)
}

func ParseMapping(content []byte) (Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, errs.NewConfigurationError(fmt.Errorf("parse tag mapping: %w", err))
	}
	if len(m) == 0 {
		return nil, errs.NewConfigurationError(fmt.Errorf("tag mapping is empty"))
	}
	if err := m.compile(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m Mapping) compile() error {
	for entity, fields := range m {
		seen := make(map[string]struct{}, len(fields))
		for i := range fields {
			f := &fields[i]
			if !IsPascalCase(f.Name) {
				return errs.NewConfigurationError(fmt.Errorf("%s: field name %q is not PascalCase", entity, f.Name))
			}
			if _, dup := seen[f.Name]; dup {
				return errs.NewConfigurationError(fmt.Errorf("%s: field %q declared twice", entity, f.Name))
			}
			seen[f.Name] = struct{}{}

			if f.Type == "" {
				f.Type = TypeString
			}
			if !f.Type.Supported() {
				return errs.NewConfigurationError(fmt.Errorf("%s.%s: unsupported field type %q", entity, f.Name, f.Type))
			}

			t, err := ParseTag(f.Tag)
			if err != nil {
				return errs.NewConfigurationError(fmt.Errorf("%s.%s: %w", entity, f.Name, err))
			}
			f.tag = t

			if f.ParentTag != "" {
				p, err := ParseTag(f.ParentTag)
				if err != nil {
					return errs.NewConfigurationError(fmt.Errorf("%s.%s parent: %w", entity, f.Name, err))
				}
				f.parent = &p
			}
		}
	}
	return nil
}

func (m Mapping) Fields(entity string) []Field {
	return m[entity]
}

// UniqueField returns the first field flagged unique for entity.
func (m Mapping) UniqueField(entity string) (Field, bool) {
	for _, f := range m[entity] {
		if f.Unique {
			return f, true
		}
	}
	return Field{}, false
}

func (m Mapping) Entities() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
