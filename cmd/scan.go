package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/formatting"
	"github.com/giantswarm/mcpsentry/internal/llm"
	"github.com/giantswarm/mcpsentry/internal/passive"
	"github.com/giantswarm/mcpsentry/internal/rules"
	"github.com/giantswarm/mcpsentry/internal/scan"
	"github.com/giantswarm/mcpsentry/internal/storage"
)

var (
	scanURL          string
	scanTransport    string
	scanHeaders      []string
	scanSessionInURL bool
	scanTimeout      time.Duration
	scanMaxTestCases int
	scanLLM          bool
	scanRulesDir     string
	scanOutput       string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run an active security scan against an MCP server",
	Long: `scan connects to an MCP server, enumerates its catalog, and drives the
ScanOrchestrator's phased pipeline: static analysis over every tool, prompt,
and resource, optional LLM-assisted adversarial test synthesis, test
execution, and a risk-aggregated report.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanURL, "url", "", "MCP server URL (required)")
	scanCmd.Flags().StringVar(&scanTransport, "transport", "streamable", "Transport to use (streamable, sse)")
	scanCmd.Flags().StringArrayVar(&scanHeaders, "header", nil, "Custom header as name=value (repeatable)")
	scanCmd.Flags().BoolVar(&scanSessionInURL, "session-in-url", true, "Forward the streamable session id via URL query instead of a header")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 5*time.Minute, "Overall scan timeout")
	scanCmd.Flags().IntVar(&scanMaxTestCases, "max-test-cases", 5, "Maximum LLM-synthesized test cases per tool")
	scanCmd.Flags().BoolVar(&scanLLM, "llm", false, "Enable LLM-assisted risk assessment and test synthesis (this CLI configures no LLM provider, so scans stay static-only)")
	scanCmd.Flags().StringVar(&scanRulesDir, "rules-dir", "", "Directory for persisted custom detection rules (default: in-memory only)")
	scanCmd.Flags().StringVar(&scanOutput, "output", "console", "Output format for the report (console, json, yaml, table)")
	scanCmd.MarkFlagRequired("url")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
	defer cancel()

	client, err := buildClient(scanURL, scanTransport, scanHeaders, scanSessionInURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Start(ctx); err != nil {
		return err
	}
	if _, err := client.Initialize(ctx); err != nil {
		return err
	}

	cat := catalog.New()
	if err := cat.Refresh(ctx, client); err != nil {
		return err
	}

	engine := detection.NewEngine()
	store := buildStore(scanRulesDir)
	ruleCatalog, err := rules.New(store, engine)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "loaded %d detection rules\n", len(ruleCatalog.All()))

	monitor := passive.New(engine)
	client.SetObserver(monitor)

	var provider llm.Provider = llm.Unavailable{}

	orchestrator := scan.New(client, cat, engine, provider)

	logs := make(chan scan.LogEntry, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range logs {
			printLogEntry(entry)
		}
	}()

	report, err := orchestrator.Run(ctx, scan.Options{MaxTestCasesPerTool: scanMaxTestCases, LLMEnabled: scanLLM}, logs)
	close(logs)
	<-done
	if err != nil {
		return err
	}

	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: formatting.OutputFormat(scanOutput)})
	fmt.Print(formatter.FormatReport(report))
	return nil
}

func buildStore(dir string) storage.Store {
	if dir == "" {
		return nil
	}
	return storage.NewYAMLStore(dir)
}

func printLogEntry(e scan.LogEntry) {
	fmt.Fprintf(os.Stderr, "[%s] %-16s %s: %s\n", e.Timestamp.Format(time.RFC3339), e.Phase, e.Type, e.Title)
}
