package formatting

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/scan"
	sentrystrings "github.com/giantswarm/mcpsentry/pkg/strings"
)

// TableFormatter provides rich table output formatting.
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

func (f *TableFormatter) SetOptions(options Options) { f.options = options }
func (f *TableFormatter) GetOptions() Options         { return f.options }

func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) formatDescription(desc string) string {
	return sentrystrings.TruncateDescription(desc, sentrystrings.DefaultDescriptionMaxLen)
}

func (f *TableFormatter) formatEmptyMessage(icon, message string) string {
	return fmt.Sprintf("%s %s\n", text.FgYellow.Sprint(icon), text.FgYellow.Sprint(message))
}

func riskColor(level detection.RiskLevel) text.Colors {
	switch level {
	case detection.RiskCritical:
		return text.Colors{text.FgHiRed, text.Bold}
	case detection.RiskHigh:
		return text.Colors{text.FgRed}
	case detection.RiskMedium:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgGreen}
	}
}

func (f *TableFormatter) FormatCatalog(cat *catalog.Catalog) string {
	var b strings.Builder

	tools := cat.Tools()
	if len(tools) == 0 {
		b.WriteString(f.formatEmptyMessage("🔧", "No tools found"))
	} else {
		t := f.createTable()
		t.AppendHeader(table.Row{"NAME", "DESCRIPTION"})
		for _, tool := range tools {
			t.AppendRow(table.Row{tool.Tool.Name, f.formatDescription(tool.Tool.Description)})
		}
		t.SetOutputMirror(&b)
		t.Render()
		fmt.Fprintf(&b, "\n🔧 Total: %d tools\n\n", len(tools))
	}

	resources := cat.Resources()
	if len(resources) > 0 {
		t := f.createTable()
		t.AppendHeader(table.Row{"URI", "NAME", "MIME TYPE"})
		for _, r := range resources {
			t.AppendRow(table.Row{r.URI, r.Name, r.MimeType})
		}
		t.SetOutputMirror(&b)
		t.Render()
		fmt.Fprintf(&b, "\n📦 Total: %d resources\n\n", len(resources))
	}

	prompts := cat.Prompts()
	if len(prompts) > 0 {
		t := f.createTable()
		t.AppendHeader(table.Row{"NAME", "DESCRIPTION", "ARGS"})
		for _, p := range prompts {
			t.AppendRow(table.Row{p.Prompt.Name, f.formatDescription(p.Prompt.Description), p.Analysis.Count})
		}
		t.SetOutputMirror(&b)
		t.Render()
		fmt.Fprintf(&b, "\n💬 Total: %d prompts\n", len(prompts))
	}

	return b.String()
}

func (f *TableFormatter) FormatReport(report scan.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Overall risk: %s\n\n", text.FgHiBlue.Sprint("●"), riskColor(report.OverallRisk).Sprint(report.OverallRisk))

	if len(report.Findings) == 0 {
		b.WriteString(f.formatEmptyMessage("✅", "No findings"))
		return b.String()
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"KIND", "NAME", "RISK", "TESTS"})
	for _, finding := range report.Findings {
		t.AppendRow(table.Row{
			finding.Kind,
			finding.Name,
			riskColor(finding.OverallRisk).Sprint(finding.OverallRisk),
			len(finding.TestResults),
		})
	}
	t.SetOutputMirror(&b)
	t.Render()

	fmt.Fprintf(&b, "\nSummary: total=%d low=%d medium=%d high=%d critical=%d\n",
		report.Summary.TotalIssues, report.Summary.Low, report.Summary.Medium, report.Summary.High, report.Summary.Critical)
	return b.String()
}

func (f *TableFormatter) FormatRules(rules []detection.Rule) string {
	if len(rules) == 0 {
		return f.formatEmptyMessage("📋", "No rules configured")
	}
	var b strings.Builder
	t := f.createTable()
	t.AppendHeader(table.Row{"ID", "NAME", "RISK", "SCOPE", "ENABLED", "ORIGIN"})
	for _, r := range rules {
		origin := "custom"
		if r.IsBuiltin {
			origin = "builtin"
		}
		t.AppendRow(table.Row{r.ID, r.Name, riskColor(r.RiskLevel).Sprint(r.RiskLevel), r.Scope, r.Enabled, origin})
	}
	t.SetOutputMirror(&b)
	t.Render()
	return b.String()
}
