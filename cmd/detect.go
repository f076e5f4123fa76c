package cmd

import (
	"context"
	"fmt"
	"slices"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/notify"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/planperfect/planperfect/internal/upload"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var detectCmd = &cobra.Command{
	Use:   "detect <photo>",
	Short: "Detect furniture and the interior style in a room photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		up := upload.New(app.Previews, upload.Options{})
		defer up.Close()
		rec, err := up.AcceptPath(args[0])
		if err != nil {
			return err
		}
		img := api.Image{Name: rec.Name, MIME: rec.MIME, Data: rec.Data}

		var (
			style      *api.StyleResult
			detections []api.Detection
		)
		err = app.Notifier.Promise(ctx, notify.Messages{
			Loading: "Analysing your room...",
			Success: "Analysis complete.",
			Error:   "Could not analyse the photo.",
		}, func(ctx context.Context) error {
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				style, err = app.API.ClassifyRoomStyle(gctx, img)
				return err
			})
			g.Go(func() error {
				var err error
				detections, err = app.API.DetectFurniture(gctx, img)
				return err
			})
			return g.Wait()
		})
		if err != nil {
			return alreadyReported(err)
		}

		slices.SortStableFunc(detections, func(a, b api.Detection) int {
			switch {
			case a.Confidence > b.Confidence:
				return -1
			case a.Confidence < b.Confidence:
				return 1
			}
			return 0
		})

		if isJSON() {
			return printJSON(map[string]any{"style": style, "detections": detections})
		}
		if style != nil {
			fmt.Println(ui.StyleSectionTitle.Render("Style: " + style.DetectedStyle))
		}
		rows := make([][]string, 0, len(detections))
		for _, d := range detections {
			rows = append(rows, []string{ui.Label(d.Class), formatMatch(d.Confidence)})
		}
		t := &ui.Table{Headers: []string{"Furniture", "Confidence"}, Rows: rows, MaxWidth: ui.TerminalWidth(80)}
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
