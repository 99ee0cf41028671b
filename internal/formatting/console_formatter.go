package formatting

import (
	"fmt"
	"strings"

	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/scan"
)

// ConsoleFormatter provides simple console output formatting.
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter.
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{options: options}
}

func (f *ConsoleFormatter) SetOptions(options Options) { f.options = options }
func (f *ConsoleFormatter) GetOptions() Options         { return f.options }

func (f *ConsoleFormatter) FormatCatalog(cat *catalog.Catalog) string {
	var b strings.Builder
	tools := cat.Tools()
	fmt.Fprintf(&b, "Tools (%d):\n", len(tools))
	for _, t := range tools {
		fmt.Fprintf(&b, "  %-30s %s\n", t.Tool.Name, t.Tool.Description)
	}

	resources := cat.Resources()
	fmt.Fprintf(&b, "Resources (%d):\n", len(resources))
	for _, r := range resources {
		fmt.Fprintf(&b, "  %-40s %s\n", r.URI, r.Name)
	}

	templates := cat.ResourceTemplates()
	fmt.Fprintf(&b, "Resource templates (%d):\n", len(templates))
	for _, t := range templates {
		fmt.Fprintf(&b, "  %s\n", t.Template.URITemplate)
	}

	prompts := cat.Prompts()
	fmt.Fprintf(&b, "Prompts (%d):\n", len(prompts))
	for _, p := range prompts {
		fmt.Fprintf(&b, "  %-30s %s\n", p.Prompt.Name, p.Prompt.Description)
	}
	return b.String()
}

func (f *ConsoleFormatter) FormatReport(report scan.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall risk: %s  (cancelled=%v)\n", report.OverallRisk, report.Cancelled)
	fmt.Fprintf(&b, "Summary: total=%d low=%d medium=%d high=%d critical=%d\n",
		report.Summary.TotalIssues, report.Summary.Low, report.Summary.Medium, report.Summary.High, report.Summary.Critical)
	for _, finding := range report.Findings {
		if finding.OverallRisk == detection.RiskLow {
			continue
		}
		fmt.Fprintf(&b, "  [%s] %-30s %s\n", finding.Kind, finding.Name, finding.OverallRisk)
		for _, tr := range finding.TestResults {
			if tr.Verdict == scan.VerdictPassed {
				continue
			}
			fmt.Fprintf(&b, "      - %-12s %s\n", tr.Verdict, tr.TestCase.Name)
		}
	}
	return b.String()
}

func (f *ConsoleFormatter) FormatRules(rules []detection.Rule) string {
	var b strings.Builder
	for _, r := range rules {
		status := "enabled"
		if !r.Enabled {
			status = "disabled"
		}
		origin := "custom"
		if r.IsBuiltin {
			origin = "builtin"
		}
		fmt.Fprintf(&b, "%-24s [%s/%s] %-8s %s\n", r.ID, origin, status, r.RiskLevel, r.Name)
	}
	return b.String()
}
