package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/telemetry"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newTelemetryClient returns a PostHog client when the user opted in and a
// project key is configured, and a no-op client otherwise.
func newTelemetryClient() telemetry.Client {
	cfg, err := telemetry.Load()
	if err != nil {
		slog.Debug("telemetry config unreadable", "error", err)
		return telemetry.NewNoopClient()
	}
	if !cfg.IsEnabled() {
		return telemetry.NewNoopClient()
	}
	client, err := telemetry.NewPostHogClient(telemetry.ClientConfig{
		APIKey:   GetConfig().Telemetry.APIKey,
		Version:  GetVersion(),
		Config:   cfg,
		Endpoint: GetConfig().Telemetry.Endpoint,
	})
	if err != nil {
		slog.Debug("telemetry client unavailable", "error", err)
		return telemetry.NewNoopClient()
	}
	return client
}

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage PlanPerfect's anonymous telemetry settings.

When enabled, PlanPerfect records which commands and wizard steps are used,
how long they take and whether they succeed. Photos, floor plans, messages
and names are never sent.`,
}

var telemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := telemetry.Load()
		if err != nil {
			return fmt.Errorf("failed to read telemetry status: %w", err)
		}

		if isJSON() {
			return printJSON(map[string]any{
				"enabled":      cfg.IsEnabled(),
				"consentAsked": cfg.ConsentAsked,
				"anonymousId":  cfg.AnonymousID,
			})
		}

		switch {
		case cfg.NeedsConsent():
			fmt.Println("📊 Telemetry: not configured yet")
			fmt.Println("   To opt in: planperfect config telemetry enable")
		case cfg.IsEnabled():
			fmt.Println("📊 Telemetry: enabled")
			fmt.Printf("   Anonymous ID: %s\n", cfg.AnonymousID)
			fmt.Println()
			fmt.Println("   To disable: planperfect config telemetry disable")
		default:
			fmt.Println("📊 Telemetry: disabled")
			fmt.Println()
			fmt.Println("   To enable: planperfect config telemetry enable")
		}
		return nil
	},
}

var telemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(true)
	},
}

var telemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(false)
	},
}

func setTelemetry(enabled bool) error {
	cfg, err := telemetry.Load()
	if err != nil {
		return fmt.Errorf("failed to read telemetry status: %w", err)
	}
	if enabled {
		cfg.Enable()
	} else {
		cfg.Disable()
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save telemetry status: %w", err)
	}
	if enabled {
		fmt.Println("✅ Telemetry enabled. Thank you for helping improve PlanPerfect!")
	} else {
		fmt.Println("✅ Telemetry disabled.")
	}
	return nil
}

// configCmd is the parent config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage PlanPerfect configuration",
	Long:  `View and manage PlanPerfect configuration settings.`,
}

// configShowCmd prints the effective configuration with secrets masked.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		rows := [][]string{
			{"api.baseURL", cfg.API.BaseURL},
			{"api.key", maskSecret(cfg.API.Key)},
			{"api.timeoutSeconds", fmt.Sprint(cfg.API.TimeoutSeconds)},
			{"realtime.driver", cfg.Realtime.Driver},
			{"realtime.url", cfg.Realtime.URL},
			{"realtime.authToken", maskSecret(cfg.Realtime.AuthToken)},
			{"realtime.bucket", cfg.Realtime.Bucket},
			{"preview.addr", cfg.Preview.Addr},
			{"log.path", cfg.Log.Path},
			{"log.level", cfg.Log.Level},
			{"data.dir", cfg.Data.Dir},
		}
		if isJSON() {
			out := make(map[string]string, len(rows))
			for _, r := range rows {
				out[r[0]] = r[1]
			}
			return printJSON(out)
		}

		source := viper.ConfigFileUsed()
		if source == "" {
			source = "defaults and environment"
		}
		ui.RenderPageHeader("Configuration", source)
		t := &ui.Table{Headers: []string{"Key", "Value"}, Rows: rows, MaxWidth: ui.TerminalWidth(100)}
		fmt.Println(t.Render())
		return nil
	},
}

var configSetAPICmd = &cobra.Command{
	Use:   "set-api <base-url> [api-key]",
	Short: "Point PlanPerfect at a backend",
	Long: `Write the backend URL (and optionally an API key) to the global config
file ~/.planperfect/config.yaml. Other keys in the file are kept.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL := strings.TrimSpace(args[0])
		key := ""
		if len(args) == 2 {
			key = strings.TrimSpace(args[1])
		}
		if err := validate.Var(baseURL, "required,url"); err != nil {
			return fmt.Errorf("invalid base URL %q", baseURL)
		}
		if err := config.SaveGlobalAPIConfig(baseURL, key); err != nil {
			return fmt.Errorf("save api config: %w", err)
		}
		fmt.Println(ui.StyleSuccess.Render("✓ Backend set to " + baseURL))
		return nil
	},
}

// maskSecret keeps only the last four characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetAPICmd)

	configCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryStatusCmd)
	telemetryCmd.AddCommand(telemetryEnableCmd)
	telemetryCmd.AddCommand(telemetryDisableCmd)
}
