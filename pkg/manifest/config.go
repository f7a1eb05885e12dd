package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"gopkg.in/yaml.v3"
)

//go:embed default_query.yaml
var defaultQuery []byte

// ModalitySection keys its columns as <model>_<column>.
const ModalitySection = "Modality"

type Column struct {
	ModelName  string `yaml:"model_name"`
	ColumnName string `yaml:"column_name"`
}

type Section struct {
	Columns []Column `yaml:"columns"`
}

// Selection maps section names to the columns they contribute.
type Selection map[string]Section

// LoadSelection reads path, or the compiled-in selection when path is empty.
func LoadSelection(path string) (Selection, error) {
	content := defaultQuery
	if path != "" {
		var err error
		if content, err = os.ReadFile(path); err != nil {
			return nil, errs.NewConfigurationError(fmt.Errorf("read query config: %w", err))
		}
	}
	return ParseSelection(content)
}

func ParseSelection(content []byte) (Selection, error) {
	var sel Selection
	if err := yaml.Unmarshal(content, &sel); err != nil {
		return nil, errs.NewConfigurationError(fmt.Errorf("parse query config: %w", err))
	}
	for name, section := range sel {
		for _, c := range section.Columns {
			if _, ok := relations[c.ModelName]; !ok {
				return nil, errs.NewConfigurationError(fmt.Errorf("section %s: unknown model %q", name, c.ModelName))
			}
			if c.ColumnName == "" {
				return nil, errs.NewConfigurationError(fmt.Errorf("section %s: %s column without name", name, c.ModelName))
			}
		}
	}
	return sel, nil
}

// sections returns section names in a stable order.
func (s Selection) sections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Column) key(section string) string {
	if section == ModalitySection {
		return c.ModelName + "_" + c.ColumnName
	}
	return c.ColumnName
}
