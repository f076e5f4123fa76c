package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/realtime"
	"github.com/planperfect/planperfect/types"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	envPrefix  = "PLANPERFECT"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate is a single instance of Validate, it caches struct info
var validate = validator.New()

// validateAppConfig checks struct tags, then the rules that span fields.
func validateAppConfig(cfg *types.AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
		}
		return err
	}
	if cfg.Realtime.Driver == config.RealtimeFirebase && cfg.Realtime.URL == "" {
		return fmt.Errorf("invalid configuration: realtime.url is required for the %s driver", config.RealtimeFirebase)
	}
	return nil
}

// setDefaults registers every default so env vars and files can override them.
func setDefaults() {
	viper.SetDefault("api.baseURL", config.DefaultAPIBaseURL)
	viper.SetDefault("api.key", "")
	viper.SetDefault("api.timeoutSeconds", int(config.DefaultAPITimeout.Seconds()))

	viper.SetDefault("realtime.driver", config.RealtimeMemory)
	viper.SetDefault("realtime.url", "")
	viper.SetDefault("realtime.authToken", "")
	viper.SetDefault("realtime.bucket", realtime.DefaultBucket)

	viper.SetDefault("preview.addr", config.DefaultPreviewAddr)

	viper.SetDefault("log.path", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.maxSizeMB", 10)

	viper.SetDefault("data.dir", "")
	viper.SetDefault("telemetry.apiKey", "")
	viper.SetDefault("telemetry.endpoint", "")
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)                          // e.g., PLANPERFECT_VERBOSE
	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // api.baseURL -> PLANPERFECT_API_BASEURL

	setDefaults()

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		if dir, err := config.GetGlobalConfigDir(); err == nil {
			viper.AddConfigPath(dir) // ~/.planperfect/config.yaml
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			if viper.GetBool("verbose") {
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		case cfgFileFlag != "" && os.IsNotExist(err):
			HandleFatalError("Specified config file not found: "+cfgFileFlag, err)
		default:
			HandleFatalError("Error reading config file "+viper.ConfigFileUsed(), err)
		}
	}

	if err := loadAppConfig(&GlobalAppConfig); err != nil {
		HandleFatalError("Configuration is invalid. Run with --verbose for details.", err)
	}
}

// loadAppConfig unmarshals Viper into cfg, fills derived paths and validates.
func loadAppConfig(cfg *types.AppConfig) error {
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = config.GetLogPath()
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = config.GetDataDir()
	}
	return validateAppConfig(cfg)
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}
