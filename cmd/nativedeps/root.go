// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for nativedeps.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/nativedeps/nativedeps/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nativedeps",
		Short: "Fetch, build and install pinned native dependencies",
		Long: TitleStyle.Render("nativedeps") + SubtitleStyle.Render(" - Fetch, build and install pinned native dependencies") + `

nativedeps builds a catalog of CMake projects, each pinned to an exact
commit, in a fixed order. Every unit is installed into its own prefix, and
later units can point at the install paths of earlier ones. When all units
are installed, a manifest is written that a downstream CMake build loads
with "cmake -C <manifest>".

` + SubtitleStyle.Render("Examples:") + `
  nativedeps units                 List the units of the catalog
  nativedeps validate              Check the catalog order
  nativedeps plan                  Print every command a build would run
  nativedeps build --jobs 8        Build everything
  nativedeps config show           Show the effective configuration`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.opts.verbose, "verbose", "v", false, "enable debug logging and stream tool output")
	flags.StringVar(&app.opts.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/nativedeps/config.cue, then ./nativedeps.cue)")
	flags.StringVar(&app.opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&app.opts.logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(
		newBuildCommand(app),
		newPlanCommand(app),
		newValidateCommand(app),
		newUnitsCommand(app),
		newConfigCommand(app),
	)

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code of the failure, if any.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		app.reportFailure(err)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// reportFailure prints the suggestions and remediation guide of err to
// stderr. The error message itself is printed by fang.
func (a *App) reportFailure(err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	if ae.HasSuggestions() || a.opts.verbose {
		// Format starts with the message itself.
		rest := strings.TrimPrefix(ae.Format(a.opts.verbose), ae.Error())
		if rest = strings.TrimLeft(rest, "\n"); rest != "" {
			fmt.Fprintln(a.stderr, WarningStyle.Render(rest))
		}
	}
	if guide := ae.Guide("auto"); guide != "" {
		fmt.Fprint(a.stderr, guide)
	}
}
