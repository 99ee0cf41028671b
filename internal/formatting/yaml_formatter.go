package formatting

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/scan"
)

// YAMLFormatter provides YAML output formatting.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

func (f *YAMLFormatter) SetOptions(options Options) { f.options = options }
func (f *YAMLFormatter) GetOptions() Options         { return f.options }

func (f *YAMLFormatter) FormatCatalog(cat *catalog.Catalog) string {
	return marshalYAML(map[string]any{
		"tools":             cat.Tools(),
		"resources":         cat.Resources(),
		"resourceTemplates": cat.ResourceTemplates(),
		"prompts":           cat.Prompts(),
	})
}

func (f *YAMLFormatter) FormatReport(report scan.Report) string {
	return marshalYAML(report)
}

func (f *YAMLFormatter) FormatRules(rules []detection.Rule) string {
	return marshalYAML(rules)
}

func marshalYAML(v any) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
