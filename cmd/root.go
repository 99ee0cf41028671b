package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcpsentry/internal/mcperr"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthFailed indicates the auth configuration was rejected (an mcperr.KindAuth error).
	ExitCodeAuthFailed = 2
	// ExitCodeBusy indicates a scan was requested while one was already active.
	ExitCodeBusy = 3
)

// rootCmd represents the base command for the mcpsentry application.
var rootCmd = &cobra.Command{
	Use:   "mcpsentry",
	Short: "Inspect the security posture of an MCP server",
	Long: `mcpsentry connects to a Model Context Protocol server over SSE or
streamable HTTP, enumerates its tools, resources, and prompts, and runs
passive and active security scans over the traffic it observes.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version string.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpsentry version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps a returned error to a semantic exit code for scripting.
func getExitCode(err error) int {
	var sentryErr *mcperr.Error
	if errors.As(err, &sentryErr) {
		switch sentryErr.Kind {
		case mcperr.KindAuth:
			return ExitCodeAuthFailed
		case mcperr.KindBusy:
			return ExitCodeBusy
		}
	}
	return ExitCodeError
}
