package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/logger"
	"github.com/planperfect/planperfect/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// version is the application version, set at build time.
	version = "0.1.0"
)

// Per-invocation state owned by the root hooks.
var (
	logCloser    io.Closer
	commandStart time.Time
	telemetryCli telemetry.Client = telemetry.NewNoopClient()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planperfect",
	Short: "PlanPerfect turns your floor plan or room photo into a furnished design.",
	Long: `PlanPerfect is an interior design assistant for your terminal.

New homeowners upload a floor plan and get generated style boards; existing
homeowners upload a room photo and get furniture recommendations. The design
agent answers questions about your home, and the design document command
produces a PDF summary of your choices.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		commandStart = time.Now()
		logger.SetVersion(version)
		logger.SetCommand(cmd.CommandPath())
		if dir, err := config.GetGlobalConfigDir(); err == nil {
			logger.SetBasePath(dir)
		}

		closer, err := logger.Setup(logger.Options{
			Path:      GetConfig().Log.Path,
			MaxSizeMB: GetConfig().Log.MaxSizeMB,
			Verbose:   isVerbose(),
			Level:     GetConfig().Log.Level,
		})
		if err != nil {
			// Logging must never block the command itself.
			LogError("log setup failed", err)
		} else {
			logCloser = closer
		}

		telemetryCli = newTelemetryClient()
		slog.Debug("command started", "command", cmd.CommandPath())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := commandContext(context.Background())
	rootCmd.SetContext(ctx)
	cmd, err := rootCmd.ExecuteC()
	stop()
	finishCommand(cmd, err)
	if err != nil {
		if !isReported(err) || isVerbose() {
			PrintError(userMessage(err), err)
		}
		os.Exit(1)
	}
}

// finishCommand records the command outcome and releases the root hooks.
func finishCommand(cmd *cobra.Command, err error) {
	if cmd != nil && !commandStart.IsZero() {
		errKind := ""
		if err != nil {
			errKind = errorKind(err)
		}
		telemetry.TrackCommand(telemetryCli, commandName(cmd), time.Since(commandStart).Milliseconds(), errKind)
	}
	_ = telemetryCli.Close()
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// commandName drops the binary name: "planperfect recommend list" -> "recommend list".
func commandName(cmd *cobra.Command) string {
	path := cmd.CommandPath()
	if i := strings.IndexByte(path, ' '); i >= 0 {
		return path[i+1:]
	}
	return path
}

// errorKind names the failure class for telemetry without leaking content.
func errorKind(err error) string {
	return api.KindOf(err).String()
}

// GetVersion returns the CLI version.
func GetVersion() string {
	return version
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.planperfect/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "print machine-readable JSON where supported")

	// Bind persistent flags to Viper
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.Version = version
}
