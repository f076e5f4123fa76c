package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/planperfect/planperfect/internal/session"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in and out of PlanPerfect",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your PlanPerfect account",
	Long: `Sign in with the account id shown on your PlanPerfect profile page.

The session is kept in the local session database, so later commands run as
the same user until you sign out.`,
	Example: `  planperfect auth login
  planperfect auth login --uid 8f2c1e --name "Ada Tan" --email ada@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, _ := cmd.Flags().GetString("uid")
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")

		if uid == "" {
			if !ui.IsInteractive() {
				return errors.New("--uid is required when not running in a terminal")
			}
			var err error
			if uid, err = promptLoginField("Account ID", "From your PlanPerfect profile page", validateRequired); err != nil {
				return err
			}
			if name, err = promptLoginField("Display name", "Optional", nil); err != nil {
				return err
			}
			if email, err = promptLoginField("Email", "Optional", validateEmail); err != nil {
				return err
			}
		}

		app, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		user := session.User{
			ID:          strings.TrimSpace(uid),
			DisplayName: strings.TrimSpace(name),
			Email:       strings.TrimSpace(email),
		}
		if err := app.Auth.Login(user); err != nil {
			return err
		}
		fmt.Println(ui.StyleSuccess.Render("✓ Signed in as " + displayName(user)))
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.Auth.LoggedIn() {
			fmt.Println("Not signed in.")
			return nil
		}
		if err := app.Auth.Logout(); err != nil {
			return err
		}
		fmt.Println(ui.StyleSuccess.Render("✓ Signed out"))
		return nil
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer app.Close()

		user, err := app.RequireUser()
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(user)
		}
		fmt.Println(ui.RenderInfoPanel("Signed in", renderUser(user)))
		return nil
	},
}

func promptLoginField(title, hint string, check func(string) error) (string, error) {
	v, err := ui.PromptInput(ui.PromptOptions{Title: title, Hint: hint, Validate: check})
	if errors.Is(err, ui.ErrPromptCancelled) {
		return "", errors.New("sign in cancelled")
	}
	return v, err
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if err := validate.Var(strings.TrimSpace(s), "email"); err != nil {
		return errors.New("not a valid email address")
	}
	return nil
}

func displayName(u session.User) string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}

func renderUser(u session.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:  %s\n", displayName(u))
	if u.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", u.Email)
	}
	fmt.Fprintf(&b, "ID:    %s", u.ID)
	return b.String()
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authWhoamiCmd)

	authLoginCmd.Flags().String("uid", "", "account id")
	authLoginCmd.Flags().String("name", "", "display name")
	authLoginCmd.Flags().String("email", "", "email address")
}
