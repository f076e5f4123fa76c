package cmd

import (
	"fmt"
	"strconv"

	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/selection"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/spf13/cobra"
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List the style themes you can pick during onboarding",
	RunE: func(cmd *cobra.Command, args []string) error {
		themes := selection.Themes()
		if isJSON() {
			return printJSON(themes)
		}
		rows := make([][]string, 0, len(themes))
		for _, t := range themes {
			rows = append(rows, []string{strconv.Itoa(t.ID), t.Name, t.Description})
		}
		t := &ui.Table{Headers: []string{"ID", "Theme", "Description"}, Rows: rows, MaxWidth: ui.TerminalWidth(100)}
		fmt.Println(t.Render())
		fmt.Println(ui.StyleSubtle.Render(fmt.Sprintf("Pick up to %d with: planperfect onboard new --themes 3,7", config.MaxThemeSelection)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themesCmd)
}
