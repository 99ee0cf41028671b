package formatting

import (
	"encoding/json"

	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/scan"
)

// JSONFormatter provides structured JSON output formatting.
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

func (f *JSONFormatter) SetOptions(options Options) { f.options = options }
func (f *JSONFormatter) GetOptions() Options         { return f.options }

func (f *JSONFormatter) FormatCatalog(cat *catalog.Catalog) string {
	return PrettyJSON(map[string]any{
		"tools":             cat.Tools(),
		"resources":         cat.Resources(),
		"resourceTemplates": cat.ResourceTemplates(),
		"prompts":           cat.Prompts(),
	})
}

func (f *JSONFormatter) FormatReport(report scan.Report) string {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return PrettyJSON(report)
	}
	return string(b)
}

func (f *JSONFormatter) FormatRules(rules []detection.Rule) string {
	return PrettyJSON(rules)
}
