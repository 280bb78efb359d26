// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativedeps/nativedeps/internal/orchestrator"
)

func newValidateCommand(app *App) *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the catalog and check its build order",
		Long: `Load the catalog and check, without running anything, that every unit only
references the install paths of units listed before it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog, err := app.loadCatalog(cfg)
			if err != nil {
				return err
			}
			if err := orchestrator.ValidateOrder(catalog.Units); err != nil {
				return classify(err, "validate catalog order", cfg.UnitsFile)
			}
			fmt.Fprintf(app.stdout, "%s %d units, order is valid\n", SuccessStyle.Render("✓"), len(catalog.Units))
			return nil
		},
	}
	validateCmd.Flags().String("units", "", "catalog file (.cue or .toml); default is the built-in catalog")
	return validateCmd
}
