// Package telemetry manages opt-in anonymous usage analytics for PlanPerfect.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/planperfect/planperfect/internal/config"
)

// ConfigFileName is the name of the telemetry state file.
const ConfigFileName = "telemetry.json"

// Config holds the telemetry state. Stored at ~/.planperfect/telemetry.json,
// separate from the main config.
type Config struct {
	Enabled bool `json:"enabled"`

	// ConsentAsked is true once the user made a choice.
	ConsentAsked bool `json:"consent_asked"`

	// AnonymousID is a random UUID generated on first load.
	AnonymousID string `json:"anonymous_id"`
}

// GetConfigPath returns the full path to the telemetry file.
func GetConfigPath() (string, error) {
	dir, err := config.GetGlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the telemetry state. A missing file yields a disabled config
// with a fresh anonymous ID.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.AnonymousID = uuid.New().String()
			return cfg, nil
		}
		return nil, fmt.Errorf("read telemetry file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse telemetry file: %w", err)
	}
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
	}
	return cfg, nil
}

// Save writes the telemetry state with owner-only permissions.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write telemetry file: %w", err)
	}
	return nil
}

// Enable turns on telemetry and records consent.
func (c *Config) Enable() {
	c.Enabled = true
	c.ConsentAsked = true
}

// Disable turns off telemetry and records consent.
func (c *Config) Disable() {
	c.Enabled = false
	c.ConsentAsked = true
}

// NeedsConsent reports whether the user has not been asked yet.
func (c *Config) NeedsConsent() bool {
	return !c.ConsentAsked
}

// IsEnabled reports whether telemetry is on.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}
