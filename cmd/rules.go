package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcpsentry/internal/detection"
	"github.com/giantswarm/mcpsentry/internal/formatting"
	"github.com/giantswarm/mcpsentry/internal/rules"
)

var (
	rulesDir    string
	rulesOutput string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and manage the detection rule catalog",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every builtin and custom detection rule",
	RunE:  runRulesList,
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Re-enable every builtin rule and discard all custom rules",
	RunE:  runRulesReset,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.PersistentFlags().StringVar(&rulesDir, "rules-dir", "", "Directory for persisted custom detection rules (default: in-memory only)")
	rulesListCmd.Flags().StringVar(&rulesOutput, "output", "console", "Output format (console, json, yaml, table)")
	rulesCmd.AddCommand(rulesListCmd, rulesResetCmd)
}

func openRuleCatalog() (*rules.Catalog, error) {
	engine := detection.NewEngine()
	return rules.New(buildStore(rulesDir), engine)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cat, err := openRuleCatalog()
	if err != nil {
		return err
	}
	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: formatting.OutputFormat(rulesOutput)})
	fmt.Print(formatter.FormatRules(cat.All()))
	return nil
}

func runRulesReset(cmd *cobra.Command, args []string) error {
	cat, err := openRuleCatalog()
	if err != nil {
		return err
	}
	if err := cat.ResetToDefaults(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "rule catalog reset to defaults")
	return nil
}
