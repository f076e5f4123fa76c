package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/logger"
	"github.com/planperfect/planperfect/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check PlanPerfect setup and diagnose issues",
	Long: `Validate your PlanPerfect installation and configuration.

Checks:
  • Configuration file and backend URL
  • Backend reachability
  • Signed-in session
  • Local data directory
  • Realtime driver used by the design assistant
  • Telemetry setting and crash reports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorCheck represents a single diagnostic check
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warn", "fail"
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func runDoctor(ctx context.Context) error {
	checks := []DoctorCheck{
		checkConfigFile(),
		checkDataDir(GetConfig().Data.Dir),
	}

	app, err := newApp(ctx, appOptions{})
	if err != nil {
		checks = append(checks, DoctorCheck{
			Name:    "Session store",
			Status:  "fail",
			Message: err.Error(),
			Hint:    "Check data.dir in your config",
		})
	} else {
		defer app.Close()
		checks = append(checks, checkBackend(ctx, app), checkSession(app))
	}
	checks = append(checks, checkRealtime(ctx), checkTelemetry(), checkCrashLogs())

	if isJSON() {
		return printJSON(checks)
	}

	fmt.Println("🩺 PlanPerfect Doctor")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	hasErrors := false
	for _, c := range checks {
		printCheck(c)
		if c.Status == "fail" {
			hasErrors = true
		}
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if hasErrors {
		fmt.Println("❌ Issues found. Fix the errors above before continuing.")
	} else {
		fmt.Println("✅ Everything looks good!")
	}
	return nil
}

func printCheck(c DoctorCheck) {
	var icon string
	switch c.Status {
	case "ok":
		icon = "✅"
	case "warn":
		icon = "⚠️ "
	case "fail":
		icon = "❌"
	}

	fmt.Printf("%s %s: %s\n", icon, c.Name, c.Message)
	if c.Hint != "" && c.Status != "ok" {
		fmt.Printf("   └─ %s\n", c.Hint)
	}
}

func checkConfigFile() DoctorCheck {
	used := viper.ConfigFileUsed()
	if used == "" {
		return DoctorCheck{
			Name:    "Configuration",
			Status:  "warn",
			Message: "No config file, using defaults (" + GetConfig().API.BaseURL + ")",
			Hint:    "Run: planperfect config set-api <base-url> [api-key]",
		}
	}
	return DoctorCheck{Name: "Configuration", Status: "ok", Message: used}
}

func checkDataDir(dir string) DoctorCheck {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return DoctorCheck{Name: "Data directory", Status: "fail", Message: err.Error(), Hint: "Set data.dir to a writable folder"}
	}
	marker := filepath.Join(dir, ".doctor")
	if err := os.WriteFile(marker, []byte("ok"), 0600); err != nil {
		return DoctorCheck{Name: "Data directory", Status: "fail", Message: dir + " is not writable", Hint: "Set data.dir to a writable folder"}
	}
	_ = os.Remove(marker)
	return DoctorCheck{Name: "Data directory", Status: "ok", Message: dir}
}

// checkBackend probes the agent model endpoint, the cheapest call the
// backend offers.
func checkBackend(ctx context.Context, app *App) DoctorCheck {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	model, err := app.API.AgentModel(ctx)
	if err != nil {
		return DoctorCheck{
			Name:    "Backend",
			Status:  "fail",
			Message: userMessage(err),
			Hint:    "Check api.baseURL and api.key",
		}
	}
	return DoctorCheck{
		Name:    "Backend",
		Status:  "ok",
		Message: fmt.Sprintf("%s answered in %s (assistant model %s)", app.Config.API.BaseURL, time.Since(start).Round(time.Millisecond), model),
	}
}

func checkSession(app *App) DoctorCheck {
	user, ok := app.Auth.Current()
	if !ok {
		return DoctorCheck{Name: "Session", Status: "warn", Message: "Not signed in", Hint: "Run: planperfect auth login"}
	}
	return DoctorCheck{Name: "Session", Status: "ok", Message: "Signed in as " + displayName(user)}
}

func checkRealtime(ctx context.Context) DoctorCheck {
	rc := GetConfig().Realtime
	if rc.Driver == config.RealtimeMemory {
		return DoctorCheck{
			Name:    "Realtime",
			Status:  "warn",
			Message: "In-memory driver: the assistant's live steps will not update",
			Hint:    "Set realtime.driver to firebase or nats",
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := openRealtime(ctx, rc)
	if err != nil {
		return DoctorCheck{Name: "Realtime", Status: "fail", Message: err.Error(), Hint: "Check realtime.url"}
	}
	_ = store.Close()
	return DoctorCheck{Name: "Realtime", Status: "ok", Message: rc.Driver + " " + rc.URL}
}

func checkTelemetry() DoctorCheck {
	cfg, err := telemetry.Load()
	if err != nil {
		return DoctorCheck{Name: "Telemetry", Status: "warn", Message: err.Error()}
	}
	if cfg.IsEnabled() {
		return DoctorCheck{Name: "Telemetry", Status: "ok", Message: "enabled"}
	}
	return DoctorCheck{Name: "Telemetry", Status: "ok", Message: "disabled"}
}

func checkCrashLogs() DoctorCheck {
	logs, err := logger.ListCrashLogs()
	if err != nil || len(logs) == 0 {
		return DoctorCheck{Name: "Crash reports", Status: "ok", Message: "none"}
	}
	return DoctorCheck{
		Name:    "Crash reports",
		Status:  "warn",
		Message: fmt.Sprintf("%d saved, latest %s", len(logs), logs[len(logs)-1]),
		Hint:    "Attach the latest report when filing an issue",
	}
}
