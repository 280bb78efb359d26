// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nativedeps/nativedeps/pkg/unit"
)

func newUnitsCommand(app *App) *cobra.Command {
	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "List the units of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog, err := app.loadCatalog(cfg)
			if err != nil {
				return err
			}
			renderUnits(app.stdout, catalog)
			return nil
		},
	}
	unitsCmd.Flags().String("units", "", "catalog file (.cue or .toml); default is the built-in catalog")
	return unitsCmd
}

// renderUnits prints one row per unit in build order.
func renderUnits(w io.Writer, catalog *unit.Catalog) {
	rows := make([][]string, 0, len(catalog.Units))
	for _, u := range catalog.Units {
		refs := make([]string, 0, len(u.References()))
		for _, r := range u.References() {
			refs = append(refs, string(r))
		}
		subdir := string(u.Subdir)
		if u.SourceOnly {
			subdir = strings.TrimSpace(subdir + " (source only)")
		}
		rows = append(rows, []string{
			string(u.Name),
			u.Revision.Short(),
			subdir,
			strings.Join(refs, ", "),
			u.BindingKey(),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers("UNIT", "REVISION", "SUBDIR", "DEPENDS ON", "MANIFEST KEY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	fmt.Fprintln(w, t.String())
	if len(catalog.Fixed) > 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("Fixed manifest entries:"))
		for _, f := range catalog.Fixed {
			fmt.Fprintf(w, "  %s=%s (%s)\n", f.Key, f.Value, f.Type.Normalize())
		}
	}
}
