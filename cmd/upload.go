package cmd

import (
	"errors"
	"fmt"

	"github.com/planperfect/planperfect/internal/ui"
	"github.com/planperfect/planperfect/internal/upload"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [image]",
	Short: "Check an image and open a local preview of it",
	Long: `Check that an image can be used by PlanPerfect (PNG or JPEG, under
15 MB) and serve a local preview URL for it.

With --watch, every image saved into the folder is checked and previewed in
turn, replacing the previous one. Stop with Ctrl+C.`,
	Example: `  planperfect upload living-room.jpg --serve
  planperfect upload --watch ~/Desktop/planperfect-drop`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		watchDir, _ := cmd.Flags().GetString("watch")
		serve, _ := cmd.Flags().GetBool("serve")
		if watchDir == "" && len(args) == 0 {
			return errors.New("give an image path or --watch <folder>")
		}

		ctx := cmd.Context()
		app, err := newApp(ctx, appOptions{Preview: true})
		if err != nil {
			return err
		}
		defer app.Close()

		up := upload.New(app.Previews, upload.Options{AutoConfirm: true})
		defer up.Close()

		if len(args) == 1 {
			rec, err := up.AcceptPath(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				if err := printJSON(fileJSON(rec)); err != nil {
					return err
				}
			} else {
				printFile(rec)
			}
		}

		if watchDir != "" {
			fmt.Println(ui.StyleSubtle.Render("Watching " + watchDir + " for images. Press Ctrl+C to stop."))
			return upload.Watch(ctx, watchDir, up, upload.WatchHandlers{
				OnStaged: printFile,
				OnRejected: func(path string, err error) {
					app.Notifier.Warning(fmt.Sprintf("%s: %v", path, err))
				},
			})
		}

		if serve {
			fmt.Println(ui.StyleSubtle.Render("Serving the preview. Press Ctrl+C to stop."))
			<-ctx.Done()
		}
		return nil
	},
}

func fileJSON(rec upload.FileRecord) map[string]any {
	return map[string]any{
		"name":       rec.Name,
		"mime":       rec.MIME,
		"bytes":      rec.Bytes,
		"size":       rec.Size,
		"previewUrl": rec.PreviewURL,
	}
}

func printFile(rec upload.FileRecord) {
	fmt.Println(ui.RenderSuccessPanel("Ready", fmt.Sprintf("%s\n%s, %s\n%s", rec.Name, rec.MIME, rec.Size, rec.PreviewURL)))
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().String("watch", "", "folder to watch for dropped images")
	uploadCmd.Flags().Bool("serve", false, "keep the preview URL alive until Ctrl+C")
}
