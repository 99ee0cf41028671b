// Package formatting provides unified report and catalog output
// formatting for the mcpsentry CLI, with console, JSON, YAML, and table
// renderers selected through the same factory the teacher's CLI used for
// its own MCP resource listings.
package formatting

import (
	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/scan"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatTable   OutputFormat = "table"
)

// Options configures the formatter behavior.
type Options struct {
	Format OutputFormat
	Quiet  bool
	Color  bool
}

// Formatter renders the catalog, a scan report, and the rule set for
// display.
type Formatter interface {
	FormatCatalog(cat *catalog.Catalog) string
	FormatReport(report scan.Report) string
	FormatRules(rules []detection.Rule) string

	SetOptions(options Options)
	GetOptions() Options
}

// Factory creates formatters for different output formats.
type Factory interface {
	CreateFormatter(options Options) Formatter
}

// NewFactory creates a new formatter factory.
func NewFactory() Factory {
	return &factory{}
}

type factory struct{}

func (f *factory) CreateFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		return NewTableFormatter(options)
	case FormatConsole:
		fallthrough
	default:
		return NewConsoleFormatter(options)
	}
}
