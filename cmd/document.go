package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/planperfect/planperfect/internal/document"
	"github.com/planperfect/planperfect/internal/telemetry"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/spf13/cobra"
)

// defaultDocumentName is used when --out names a directory or is empty.
const defaultDocumentName = "planperfect-design.pdf"

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Generate your design document",
	Long: `Generate a PDF that summarises your onboarding: the styles picked for a
new home, or the furniture recommendations for an existing one.`,
	Example: `  planperfect document generate --serve
  planperfect document generate --out ~/Documents/
  planperfect document generate --cloud`,
}

var documentGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the design document for your onboarding flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		cloud, _ := cmd.Flags().GetBool("cloud")
		serve, _ := cmd.Flags().GetBool("serve")

		ctx := cmd.Context()
		app, err := newApp(ctx, appOptions{Preview: true})
		if err != nil {
			return err
		}
		defer app.Close()
		if _, err := app.RequireUser(); err != nil {
			return err
		}

		flow := document.New(document.Options{
			Backend:  app.API,
			Users:    app.Auth,
			Notifier: app.Notifier,
			Previews: app.Previews,
		})
		defer flow.Close()

		spinner := ui.NewSpinner("Generating your design document...")
		if !isJSON() {
			spinner.Start()
		}
		doc, err := flow.Run(ctx)
		spinner.Stop()
		if err != nil {
			return alreadyReported(err)
		}

		result := map[string]any{
			"flow":       doc.Flow,
			"bytes":      doc.Bytes,
			"previewUrl": doc.PreviewURL,
		}

		if out != "" {
			path := documentPath(out)
			if err := flow.Download(ctx, path); err != nil {
				return err
			}
			telemetry.TrackDocumentDownload(telemetryCli, doc.Flow, doc.Bytes)
			result["path"] = path
		}

		if cloud {
			url, err := flow.SaveToCloud(ctx)
			if err != nil {
				return alreadyReported(err)
			}
			result["cloudUrl"] = url
		}

		if isJSON() {
			return printJSON(result)
		}

		body := fmt.Sprintf("%s, %s\nPreview: %s", doc.Flow, doc.Size, doc.PreviewURL)
		if p, ok := result["path"]; ok {
			body += fmt.Sprintf("\nSaved to: %s", p)
		}
		if u, ok := result["cloudUrl"]; ok {
			body += fmt.Sprintf("\nCloud copy: %s", u)
		}
		fmt.Println(ui.RenderSuccessPanel("Design document", body))

		if serve {
			fmt.Println(ui.StyleSubtle.Render("Serving the preview. Press Ctrl+C to stop."))
			<-ctx.Done()
		}
		return nil
	},
}

// documentPath resolves --out: a trailing separator names a folder that gets
// the default file name, and a bare name gets the .pdf extension.
func documentPath(out string) string {
	if out == "" {
		return defaultDocumentName
	}
	if out[len(out)-1] == filepath.Separator || out[len(out)-1] == '/' {
		return filepath.Join(out, defaultDocumentName)
	}
	if filepath.Ext(out) == "" {
		return out + ".pdf"
	}
	return out
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentGenerateCmd)

	documentGenerateCmd.Flags().StringP("out", "o", "", "write the PDF to this file or folder")
	documentGenerateCmd.Flags().Bool("cloud", false, "also save a copy to your PlanPerfect account")
	documentGenerateCmd.Flags().Bool("serve", false, "keep the preview URL alive until Ctrl+C")
}
