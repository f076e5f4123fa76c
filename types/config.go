package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	API       APIConfig       `mapstructure:"api" validate:"required"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Log       LogConfig       `mapstructure:"log"`
	Data      DataConfig      `mapstructure:"data"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// APIConfig points the client at the PlanPerfect backend
type APIConfig struct {
	BaseURL        string `mapstructure:"baseURL" validate:"required,url"`
	Key            string `mapstructure:"key"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds" validate:"omitempty,min=5,max=600"`
}

// RealtimeConfig selects the driver for the agent's live channels
type RealtimeConfig struct {
	Driver    string `mapstructure:"driver" validate:"required,oneof=memory firebase nats"`
	URL       string `mapstructure:"url" validate:"omitempty,url"`
	AuthToken string `mapstructure:"authToken"`
	Bucket    string `mapstructure:"bucket"`
}

// PreviewConfig holds the loopback preview server settings
type PreviewConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// LogConfig controls the rotating log file
type LogConfig struct {
	Path      string `mapstructure:"path"`
	Level     string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	MaxSizeMB int    `mapstructure:"maxSizeMB" validate:"omitempty,min=1,max=1024"`
}

// DataConfig holds local state settings
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// TelemetryConfig holds the PostHog project key. Consent lives in telemetry.json.
type TelemetryConfig struct {
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}
