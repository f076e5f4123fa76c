package cmd

import (
	"fmt"
	"strings"

	"github.com/planperfect/planperfect/internal/agent"
	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/planperfect/planperfect/internal/upload"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the PlanPerfect design assistant",
	Long: `Open the design assistant. It knows your onboarding answers and can
search the web, suggest colours and furniture, and look at photos you attach.

In the chat, type /attach <path> to add an image to your next message,
/clear to start over and /quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.IsInteractive() {
			return fmt.Errorf("the chat needs a terminal; use: planperfect agent ask \"your question\"")
		}
		ctx := cmd.Context()
		app, err := newApp(ctx, appOptions{Interactive: true, Preview: true, Realtime: true})
		if err != nil {
			return err
		}
		defer app.Close()

		sess, up, err := openAgent(cmd, app)
		if err != nil {
			return err
		}
		defer up.Close()
		defer sess.Close()

		if err := sess.Attach(ctx); err != nil {
			// Live steps are optional; the chat still works without them.
			LogError("attach realtime channels", err)
		}
		return ui.RunChat(ctx, sess, app.Toasts, imageLoader(up))
	},
}

var agentAskCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message to the assistant and print the reply",
	Example: `  planperfect agent ask "Which rug suits a grey sofa?"
  planperfect agent ask "What style is this?" --image room.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx, appOptions{Preview: true})
		if err != nil {
			return err
		}
		defer app.Close()

		sess, up, err := openAgent(cmd, app)
		if err != nil {
			return err
		}
		defer up.Close()
		defer sess.Close()

		var img *api.Image
		if path, _ := cmd.Flags().GetString("image"); path != "" {
			if img, err = imageLoader(up)(path); err != nil {
				return err
			}
		}

		spinner := ui.NewSpinner("Thinking...")
		if !isJSON() {
			spinner.Start()
		}
		reply, err := sess.Send(ctx, strings.Join(args, " "), img)
		spinner.Stop()
		if err != nil {
			return alreadyReported(err)
		}

		if isJSON() {
			return printJSON(map[string]any{"reply": reply.Content, "model": sess.ModelName()})
		}
		fmt.Println(ui.Icon("✦", ui.StylePrefixAgent) + " " + ui.WrapText(reply.Content, ui.TerminalWidth(100)-4))
		return nil
	},
}

var agentHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the conversation so far",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		sess, up, err := openAgent(cmd, app)
		if err != nil {
			return err
		}
		defer up.Close()
		defer sess.Close()

		view := sess.View()
		if isJSON() {
			return printJSON(view.Messages)
		}
		width := ui.TerminalWidth(100) - 4
		for _, m := range view.Messages {
			prefix := ui.Icon("✦", ui.StylePrefixAgent)
			if m.Role == agent.RoleUser {
				prefix = ui.Icon("›", ui.StylePrefixUser)
			}
			fmt.Println(prefix + " " + ui.WrapText(m.Content, width))
			if m.Attachment != nil {
				fmt.Println(ui.StyleSubtle.Render("  📎 " + m.Attachment.Name))
			}
		}
		if n := view.Outputs.Count(); n > 0 {
			fmt.Println(ui.StyleSubtle.Render(fmt.Sprintf("\n%d outputs from the assistant", n)))
		}
		return nil
	},
}

var agentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the conversation and the assistant's outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := app.RequireUser(); err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("yes")
		if !force && !confirmOrAbort("Clear the whole conversation? [y/N] ") {
			return nil
		}

		sess := agent.New(agent.Options{
			Backend:  app.API,
			Users:    app.Auth,
			Notifier: app.Notifier,
			Previews: app.Previews,
		})
		defer sess.Close()
		if err := sess.Clear(cmd.Context()); err != nil {
			return alreadyReported(err)
		}
		return nil
	},
}

// openAgent creates a session for the signed-in user and loads its history.
func openAgent(cmd *cobra.Command, app *App) (*agent.Session, *upload.Uploader, error) {
	if _, err := app.RequireUser(); err != nil {
		return nil, nil, err
	}
	sess := agent.New(agent.Options{
		Backend:  app.API,
		Users:    app.Auth,
		Notifier: app.Notifier,
		Previews: app.Previews,
		Store:    app.Realtime,
	})
	if err := sess.Load(cmd.Context()); err != nil {
		sess.Close()
		return nil, nil, alreadyReported(err)
	}
	return sess, upload.New(app.Previews, upload.Options{}), nil
}

// imageLoader validates a file through the uploader. The session publishes
// its own preview for the attachment, so the uploader's one is released.
func imageLoader(up *upload.Uploader) ui.FileLoader {
	return func(path string) (*api.Image, error) {
		rec, err := up.AcceptPath(strings.TrimSpace(path))
		if err != nil {
			return nil, err
		}
		up.Remove()
		return &api.Image{Name: rec.Name, MIME: rec.MIME, Data: rec.Data}, nil
	}
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentAskCmd)
	agentCmd.AddCommand(agentHistoryCmd)
	agentCmd.AddCommand(agentClearCmd)

	agentAskCmd.Flags().String("image", "", "attach an image (PNG or JPEG)")
	agentClearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
