// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativedeps/nativedeps/internal/config"
)

// newConfigCommand creates the `nativedeps config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect nativedeps configuration",
		Long: `Inspect nativedeps configuration.

Configuration is read from, in increasing precedence:
  - built-in defaults
  - --config FILE, else $XDG_CONFIG_HOME/nativedeps/config.cue, else ./nativedeps.cue
  - NATIVEDEPS_* environment variables (NATIVEDEPS_WORK_DIR, NATIVEDEPS_CMAKE_JOBS, ...)
  - command-line flags`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}
