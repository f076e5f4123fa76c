package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/document"
	"github.com/planperfect/planperfect/internal/logger"
	"github.com/planperfect/planperfect/internal/recommend"
	"github.com/planperfect/planperfect/internal/selection"
	"github.com/planperfect/planperfect/internal/telemetry"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/planperfect/planperfect/internal/upload"
	"github.com/planperfect/planperfect/internal/wizard"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Run an onboarding flow",
	Long: `Onboarding collects what PlanPerfect needs to design for you.

  new       you have a new home: upload a floor plan, pick themes and get
            generated style boards
  existing  you live there already: upload a room photo, choose furniture
            to replace and get recommendations

In a terminal the flow runs as an interactive wizard. With --no-tui (or when
output is not a terminal) every input comes from flags.`,
}

var onboardNewCmd = &cobra.Command{
	Use:   "new",
	Short: "New homeowner: floor plan to style boards",
	Example: `  planperfect onboard new
  planperfect onboard new --no-tui --budget 20k-60k --occupants 2 \
      --floor-plan plan.png --themes 3,7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnboardNew(cmd)
	},
}

var onboardExistingCmd = &cobra.Command{
	Use:   "existing",
	Short: "Existing homeowner: room photo to recommendations",
	Example: `  planperfect onboard existing
  planperfect onboard existing --no-tui --photo living.jpg \
      --furniture sofa,coffee_table --budget 3000-8000 --occupants 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnboardExisting(cmd)
	},
}

// useTUI reports whether a command should run its bubbletea front end.
func useTUI(cmd *cobra.Command) bool {
	noTUI, _ := cmd.Flags().GetBool("no-tui")
	return !noTUI && !isJSON() && ui.IsInteractive()
}

// preferenceFlags reads --budget, --occupants and --lifestyle.
func preferenceFlags(cmd *cobra.Command) (api.Preferences, error) {
	budget, _ := cmd.Flags().GetString("budget")
	occupants, _ := cmd.Flags().GetInt("occupants")
	lifestyle, _ := cmd.Flags().GetString("lifestyle")
	if budget == "" {
		return api.Preferences{}, errors.New("--budget is required, e.g. --budget 20000-60000")
	}
	lo, hi, err := parseBudget(budget)
	if err != nil {
		return api.Preferences{}, err
	}
	prefs := api.Preferences{
		BudgetMin: lo,
		BudgetMax: hi,
		Occupants: occupants,
		Lifestyle: splitList(lifestyle),
	}
	if err := wizard.ValidatePreferences(prefs); err != nil {
		return api.Preferences{}, err
	}
	return prefs, nil
}

// trackWizard mirrors step changes into the crash context and telemetry.
func trackWizard[S any](m *wizard.Machine[S], flow string) func() {
	var mu sync.Mutex
	last := -1
	return m.Subscribe(func(st wizard.Status) {
		mu.Lock()
		changed := st.Index != last
		last = st.Index
		mu.Unlock()
		if !changed {
			return
		}
		logger.SetWizardStep(flow + "/" + st.StepID)
		telemetry.TrackWizardStep(telemetryCli, flow, st.StepID, st.Index)
	})
}

// drivePlain runs a flow without the TUI. fill supplies each input step's
// value before the machine is asked to advance.
func drivePlain[S any](ctx context.Context, m *wizard.Machine[S], fill func(stepID string, s *S) error) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	for {
		m.Wait()
		st := m.Status()
		switch st.Phase {
		case wizard.PhaseDone:
			return nil
		case wizard.PhaseFailed:
			return fmt.Errorf("%s: %w", st.Title, st.Err)
		case wizard.PhaseProcessing:
			continue
		}

		var fillErr error
		if err := m.Edit(func(s *S) { fillErr = fill(st.StepID, s) }); err != nil {
			return err
		}
		if fillErr != nil {
			return fillErr
		}
		if err := m.Next(ctx); err != nil {
			return fmt.Errorf("%s: %w", st.Title, err)
		}
	}
}

// uploadInto stages path and stores the record through set.
func uploadInto(up *upload.Uploader, path string, set func(*upload.FileRecord)) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("enter the path to an image")
	}
	rec, err := up.AcceptPath(path)
	if err != nil {
		return err
	}
	set(&rec)
	return nil
}

func fileSummary(f *upload.FileRecord) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)\n%s", f.Name, f.Size, f.PreviewURL)
}

func runOnboardNew(cmd *cobra.Command) error {
	interactive := useTUI(cmd)
	floorPlan, _ := cmd.Flags().GetString("floor-plan")
	themesFlag, _ := cmd.Flags().GetString("themes")
	rooms, _ := cmd.Flags().GetString("rooms")

	var prefs api.Preferences
	if !interactive {
		var err error
		if prefs, err = preferenceFlags(cmd); err != nil {
			return err
		}
		if floorPlan == "" {
			return errors.New("--floor-plan is required")
		}
		if themesFlag == "" {
			return errors.New("--themes is required, e.g. --themes 3,7 (see: planperfect themes)")
		}
	}

	ctx := cmd.Context()
	app, err := newApp(ctx, appOptions{Interactive: interactive, Preview: true})
	if err != nil {
		return err
	}
	defer app.Close()
	if _, err := app.RequireUser(); err != nil {
		return err
	}

	up := upload.New(app.Previews, upload.Options{AutoConfirm: true})
	defer up.Close()
	themes := selection.NewThemePicker()

	m, err := wizard.NewHomeowner(wizard.Deps{Backend: app.API, Users: app.Auth, Plain: !interactive})
	if err != nil {
		return err
	}
	defer trackWizard(m, document.FlowNewHomeowner)()

	if interactive {
		done, err := ui.RunWizard(ctx, "New homeowner", m, newHomeownerEditors(up, themes), app.Toasts)
		if err != nil {
			return err
		}
		if !done {
			fmt.Println("Onboarding paused. Run the command again to start over.")
			return nil
		}
	} else {
		err := drivePlain(ctx, m, func(step string, s *wizard.NewHomeownerState) error {
			switch step {
			case wizard.StepPreferences:
				p := prefs
				s.Prefs = &p
			case wizard.StepFloorPlan:
				return uploadInto(up, floorPlan, func(f *upload.FileRecord) { s.FloorPlan = f })
			case wizard.StepReview:
				ext := *s.Extraction
				for _, fix := range splitList(rooms) {
					if err := applyRoomCount(&ext.Counts, fix); err != nil {
						return err
					}
				}
				s.Extraction = &ext
				s.Confirmed = true
			case wizard.StepThemes:
				names, err := pickThemes(themes, themesFlag)
				if err != nil {
					return err
				}
				s.Themes = names
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	state := m.State()
	if isJSON() {
		return printJSON(map[string]any{
			"extraction": state.Extraction,
			"themes":     state.Themes,
			"styles":     state.Styles,
		})
	}
	fmt.Println(ui.RenderSuccessPanel("Your styles", summarizeStyles(state.Styles)))
	fmt.Println(ui.StyleSubtle.Render("Next: planperfect document generate"))
	return nil
}

func newHomeownerEditors(up *upload.Uploader, themes *selection.ThemePicker) map[string]ui.StepEditor[wizard.NewHomeownerState] {
	type S = wizard.NewHomeownerState
	return map[string]ui.StepEditor[S]{
		wizard.StepPreferences: {
			Prompt:  "budget, occupants, lifestyle (e.g. 20k-60k, 2, pets)",
			Summary: func(s S) string { return summarizePreferences(s.Prefs) },
			Apply: func(s *S, input string) error {
				p, err := parsePreferences(input)
				if err != nil {
					return err
				}
				s.Prefs = &p
				return nil
			},
		},
		wizard.StepFloorPlan: {
			Prompt:  "path to your floor plan (PNG or JPEG)",
			Summary: func(s S) string { return fileSummary(s.FloorPlan) },
			Apply: func(s *S, input string) error {
				return uploadInto(up, input, func(f *upload.FileRecord) { s.FloorPlan = f })
			},
		},
		wizard.StepReview: {
			Prompt:  "'yes' to confirm, or fix a count (bedroom=3)",
			Summary: func(s S) string { return summarizeExtraction(s.Extraction) },
			Apply: func(s *S, input string) error {
				if s.Extraction == nil {
					return errors.New("nothing extracted yet")
				}
				switch strings.ToLower(input) {
				case "y", "yes":
					s.Confirmed = true
					return nil
				}
				ext := *s.Extraction
				if err := applyRoomCount(&ext.Counts, input); err != nil {
					return err
				}
				s.Extraction = &ext
				s.Confirmed = false
				return nil
			},
		},
		wizard.StepThemes: {
			Prompt:  "theme ids (e.g. 3,7) or 'edit' to choose",
			Summary: func(s S) string { return strings.Join(s.Themes, ", ") },
			Apply: func(s *S, input string) error {
				names, err := pickThemes(themes, input)
				if err != nil {
					return err
				}
				s.Themes = names
				return nil
			},
			Interactive: func(s *S) error {
				names, err := ui.PromptThemes(themes)
				if err != nil {
					return err
				}
				s.Themes = names
				return nil
			},
		},
		wizard.StepStyles: {
			Summary: func(s S) string { return summarizeStyles(s.Styles) },
		},
	}
}

func runOnboardExisting(cmd *cobra.Command) error {
	interactive := useTUI(cmd)
	photo, _ := cmd.Flags().GetString("photo")
	furnitureFlag, _ := cmd.Flags().GetString("furniture")

	var prefs api.Preferences
	if !interactive {
		var err error
		if prefs, err = preferenceFlags(cmd); err != nil {
			return err
		}
		if photo == "" {
			return errors.New("--photo is required")
		}
	}

	ctx := cmd.Context()
	app, err := newApp(ctx, appOptions{Interactive: interactive, Preview: true})
	if err != nil {
		return err
	}
	defer app.Close()
	if _, err := app.RequireUser(); err != nil {
		return err
	}

	up := upload.New(app.Previews, upload.Options{AutoConfirm: true})
	defer up.Close()
	picker := selection.NewFurniturePicker()
	browser := recommend.New(recommend.Options{
		Backend:  app.API,
		Users:    app.Auth,
		Notifier: app.Notifier,
		Flag:     app.Saved,
	})

	m, err := wizard.ExistingHomeowner(wizard.Deps{
		Backend:     app.API,
		Users:       app.Auth,
		Recommender: browser,
		Plain:       !interactive,
	})
	if err != nil {
		return err
	}
	defer trackWizard(m, document.FlowExistingHomeowner)()

	if interactive {
		done, err := ui.RunWizard(ctx, "Existing homeowner", m, existingHomeownerEditors(up, picker, browser), app.Toasts)
		if err != nil {
			return err
		}
		if !done {
			fmt.Println("Onboarding paused. Run the command again to start over.")
			return nil
		}
	} else {
		err := drivePlain(ctx, m, func(step string, s *wizard.ExistingHomeownerState) error {
			switch step {
			case wizard.StepRoomPhoto:
				return uploadInto(up, photo, func(f *upload.FileRecord) { s.Photo = f })
			case wizard.StepFurniture:
				classes := wizard.FurnitureClasses(s.Detections)
				if len(classes) == 0 {
					return errors.New("no furniture was detected in your photo")
				}
				input := furnitureFlag
				if input == "" {
					input = strings.Join(classes[:min(len(classes), config.MaxFurnitureSelection)], ",")
				}
				chosen, err := pickFurniture(picker, classes, input)
				if err != nil {
					return err
				}
				s.Furniture = chosen
			case wizard.StepBudget:
				p := prefs
				s.Prefs = &p
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	state := m.State()
	if isJSON() {
		lists := make(map[string][]api.Recommendation, len(state.Furniture))
		for _, f := range browser.Furniture() {
			lists[f] = browser.List(f)
		}
		return printJSON(map[string]any{
			"style":           state.Style,
			"furniture":       state.Furniture,
			"recommendations": lists,
		})
	}
	if state.Style != nil {
		fmt.Println(ui.StyleSectionTitle.Render("Detected style: " + state.Style.DetectedStyle))
	}
	for _, f := range browser.Furniture() {
		printRecommendations(f, browser.List(f), browser)
	}
	fmt.Println(ui.StyleSubtle.Render("Save one: planperfect recommend save <furniture> <number> --style <style>"))
	return nil
}

func existingHomeownerEditors(up *upload.Uploader, picker *selection.Capped[string], browser *recommend.Browser) map[string]ui.StepEditor[wizard.ExistingHomeownerState] {
	type S = wizard.ExistingHomeownerState
	return map[string]ui.StepEditor[S]{
		wizard.StepRoomPhoto: {
			Prompt:  "path to a photo of your room (PNG or JPEG)",
			Summary: func(s S) string { return fileSummary(s.Photo) },
			Apply: func(s *S, input string) error {
				return uploadInto(up, input, func(f *upload.FileRecord) { s.Photo = f })
			},
		},
		wizard.StepAnalysis: {
			Summary: func(s S) string {
				if s.Style == nil {
					return ""
				}
				return fmt.Sprintf("Style: %s\nFound: %s", s.Style.DetectedStyle, summarizeFurniture(wizard.FurnitureClasses(s.Detections)))
			},
		},
		wizard.StepFurniture: {
			Prompt:  fmt.Sprintf("furniture to replace, up to %d (or 'edit')", config.MaxFurnitureSelection),
			Summary: func(s S) string { return summarizeFurniture(s.Furniture) },
			Apply: func(s *S, input string) error {
				chosen, err := pickFurniture(picker, wizard.FurnitureClasses(s.Detections), input)
				if err != nil {
					return err
				}
				s.Furniture = chosen
				return nil
			},
			Interactive: func(s *S) error {
				if err := ui.PromptFurniture(wizard.FurnitureClasses(s.Detections), picker); err != nil {
					return err
				}
				s.Furniture = picker.Selected()
				return nil
			},
		},
		wizard.StepBudget: {
			Prompt:  "budget, occupants, lifestyle (e.g. 3k-8k, 3, kids)",
			Summary: func(s S) string { return summarizePreferences(s.Prefs) },
			Apply: func(s *S, input string) error {
				p, err := parsePreferences(input)
				if err != nil {
					return err
				}
				s.Prefs = &p
				return nil
			},
		},
		wizard.StepBrowse: {
			Summary: func(s S) string {
				var b strings.Builder
				for _, f := range browser.Furniture() {
					fmt.Fprintf(&b, "%s: %d matches\n", ui.Label(f), len(browser.List(f)))
				}
				return strings.TrimRight(b.String(), "\n")
			},
		},
	}
}

func init() {
	rootCmd.AddCommand(onboardCmd)
	onboardCmd.AddCommand(onboardNewCmd)
	onboardCmd.AddCommand(onboardExistingCmd)

	for _, c := range []*cobra.Command{onboardNewCmd, onboardExistingCmd} {
		c.Flags().Bool("no-tui", false, "take every input from flags")
		c.Flags().String("budget", "", "budget range, e.g. 20000-60000")
		c.Flags().Int("occupants", 1, "number of people living in the home")
		c.Flags().String("lifestyle", "", "comma-separated lifestyle notes, e.g. pets,works from home")
	}
	onboardNewCmd.Flags().String("floor-plan", "", "floor plan image (PNG or JPEG)")
	onboardNewCmd.Flags().String("themes", "", "comma-separated theme ids (at most 2)")
	onboardNewCmd.Flags().String("rooms", "", "room count corrections, e.g. bedroom=3,study=1")
	onboardExistingCmd.Flags().String("photo", "", "room photo (PNG or JPEG)")
	onboardExistingCmd.Flags().String("furniture", "", "comma-separated furniture classes to replace (default: first detected)")
}
