package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/recommend"
	"github.com/planperfect/planperfect/internal/telemetry"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:     "recommend",
	Aliases: []string{"rec"},
	Short:   "Browse and save furniture recommendations",
}

var recommendListCmd = &cobra.Command{
	Use:     "list <furniture>...",
	Short:   "Show recommendations for one or more furniture classes",
	Example: `  planperfect recommend list sofa coffee_table --style Scandinavian`,
	Args:    cobra.RangeArgs(1, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, browser, err := openBrowser(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := browser.FetchAll(cmd.Context(), args); err != nil {
			return alreadyReported(err)
		}
		if _, err := browser.LoadSaved(cmd.Context()); err != nil {
			LogError("load saved recommendations", err)
		}
		if isJSON() {
			out := make(map[string][]api.Recommendation, len(args))
			for _, f := range browser.Furniture() {
				out[f] = browser.List(f)
			}
			return printJSON(out)
		}
		for _, f := range browser.Furniture() {
			printRecommendations(f, browser.List(f), browser)
		}
		return nil
	},
}

var recommendSaveCmd = &cobra.Command{
	Use:   "save <furniture> <number>",
	Short: "Save a recommendation from a list",
	Long: `Save the recommendation at <number> in the list shown by
'planperfect recommend list <furniture>' for the same style.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, browser, err := openBrowser(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		item, err := pickRecommendation(cmd, browser, args[0], args[1])
		if err != nil {
			return err
		}
		if _, err := browser.LoadSaved(cmd.Context()); err != nil {
			return err
		}
		if browser.IsSaved(item.ID) {
			app.Notifier.Info(recommend.AlreadySavedMessage)
			return nil
		}
		saved, err := browser.ToggleSave(cmd.Context(), item)
		if err != nil {
			return alreadyReported(err)
		}
		telemetry.TrackRecommendationSave(telemetryCli, args[0], saved)
		return nil
	},
}

var recommendUnsaveCmd = &cobra.Command{
	Use:   "unsave <id>",
	Short: "Remove a saved recommendation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, browser, err := openBrowser(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := browser.LoadSaved(cmd.Context()); err != nil {
			return err
		}
		var item *api.Recommendation
		for _, r := range browser.Saved() {
			if r.ID == args[0] {
				item = &r
				break
			}
		}
		if item == nil {
			return fmt.Errorf("%s is not in your saved recommendations", args[0])
		}
		saved, err := browser.ToggleSave(cmd.Context(), *item)
		if err != nil {
			return alreadyReported(err)
		}
		telemetry.TrackRecommendationSave(telemetryCli, item.Furniture, saved)
		return nil
	},
}

var recommendNotRelevantCmd = &cobra.Command{
	Use:   "not-relevant <furniture> <number>",
	Short: "Replace a recommendation with a fresh one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, browser, err := openBrowser(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := listNumber(args[1])
		if err != nil {
			return err
		}
		if _, err := browser.Fetch(cmd.Context(), args[0]); err != nil {
			return err
		}
		replacement, err := browser.NotRelevant(cmd.Context(), args[0], n-1)
		if err != nil {
			if errors.Is(err, recommend.ErrIndex) {
				return fmt.Errorf("there is no recommendation %d for %s", n, args[0])
			}
			return alreadyReported(err)
		}
		if replacement == nil {
			app.Notifier.Info("No new match found; the item was removed.")
		}
		if isJSON() {
			return printJSON(browser.List(args[0]))
		}
		printRecommendations(args[0], browser.List(args[0]), browser)
		return nil
	},
}

var recommendSavedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List your saved recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, browser, err := openBrowser(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		items, err := browser.LoadSaved(cmd.Context())
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(items)
		}
		if len(items) == 0 {
			fmt.Println("You have not saved any recommendations yet.")
			return nil
		}
		rows := make([][]string, 0, len(items))
		for _, r := range items {
			rows = append(rows, []string{r.ID, ui.Label(r.Furniture), r.Name, formatMatch(r.Match)})
		}
		t := &ui.Table{Headers: []string{"ID", "Furniture", "Name", "Match"}, Rows: rows, MaxWidth: ui.TerminalWidth(100)}
		fmt.Println(ui.StyleSectionTitle.Render(fmt.Sprintf("Saved (%d)", app.Saved.Get().Count)))
		fmt.Println(t.Render())
		return nil
	},
}

// openBrowser builds the app and a browser for the --style flag.
func openBrowser(cmd *cobra.Command) (*App, *recommend.Browser, error) {
	app, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return nil, nil, err
	}
	if _, err := app.RequireUser(); err != nil {
		app.Close()
		return nil, nil, err
	}
	style, _ := cmd.Flags().GetString("style")
	browser := recommend.New(recommend.Options{
		Backend:  app.API,
		Users:    app.Auth,
		Notifier: app.Notifier,
		Flag:     app.Saved,
		Style:    style,
	})
	return app, browser, nil
}

// pickRecommendation fetches furniture and returns the item at the
// 1-based position in number.
func pickRecommendation(cmd *cobra.Command, b *recommend.Browser, furniture, number string) (api.Recommendation, error) {
	n, err := listNumber(number)
	if err != nil {
		return api.Recommendation{}, err
	}
	items, err := b.Fetch(cmd.Context(), furniture)
	if err != nil {
		return api.Recommendation{}, err
	}
	if n > len(items) {
		return api.Recommendation{}, fmt.Errorf("there is no recommendation %d for %s (%d shown)", n, furniture, len(items))
	}
	item := items[n-1]
	if item.Furniture == "" {
		item.Furniture = furniture
	}
	return item, nil
}

func listNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%q is not a list number", s)
	}
	return n, nil
}

func formatMatch(m float64) string {
	if m <= 1 {
		m *= 100
	}
	return fmt.Sprintf("%.0f%%", m)
}

// printRecommendations renders one furniture list with saved markers.
func printRecommendations(furniture string, items []api.Recommendation, b *recommend.Browser) {
	fmt.Println(ui.StyleSectionTitle.Render(ui.Label(furniture)))
	if len(items) == 0 {
		fmt.Println(ui.StyleSubtle.Render("  No matches found."))
		return
	}
	rows := make([][]string, 0, len(items))
	for i, r := range items {
		mark := ""
		if b != nil && b.IsSaved(r.ID) {
			mark = "♥"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), r.Name, formatMatch(r.Match), mark})
	}
	t := &ui.Table{Headers: []string{"#", "Name", "Match", "Saved"}, Rows: rows, MaxWidth: ui.TerminalWidth(100)}
	fmt.Println(t.Render())
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	for _, c := range []*cobra.Command{recommendListCmd, recommendSaveCmd, recommendNotRelevantCmd} {
		c.Flags().String("style", "", "interior style to match, e.g. Scandinavian")
		_ = c.MarkFlagRequired("style")
	}
	recommendCmd.AddCommand(recommendListCmd)
	recommendCmd.AddCommand(recommendSaveCmd)
	recommendCmd.AddCommand(recommendUnsaveCmd)
	recommendCmd.AddCommand(recommendNotRelevantCmd)
	recommendCmd.AddCommand(recommendSavedCmd)
}
