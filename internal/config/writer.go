package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the global config file inside GetGlobalConfigDir.
const ConfigFileName = "config.yaml"

// SaveGlobalAPIConfig writes the backend URL and API key to the global
// config, keeping every other key already in the file.
func SaveGlobalAPIConfig(baseURL, key string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	configDir, err := GetGlobalConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	configFile := filepath.Join(configDir, ConfigFileName)

	doc := map[string]any{}
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", configFile, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	apiSection, _ := doc["api"].(map[string]any)
	if apiSection == nil {
		apiSection = map[string]any{}
	}
	apiSection["baseURL"] = baseURL
	if key != "" {
		apiSection["key"] = key
	}
	doc["api"] = apiSection
	if _, ok := doc["version"]; !ok {
		doc["version"] = "1"
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// The file holds the API key: owner read/write only.
	return os.WriteFile(configFile, out, 0600)
}
