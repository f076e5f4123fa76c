package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.planperfect).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".planperfect"), nil
}

// GetDataDir returns the directory for local state (session database).
// Resolution order (first match wins):
// 1. Explicit config via "data.dir" (Viper/env/flag)
// 2. XDG_DATA_HOME/planperfect (if XDG_DATA_HOME is set)
// 3. Global fallback: ~/.planperfect/data
func GetDataDir() string {
	if path := viper.GetString("data.dir"); path != "" {
		return path
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "planperfect")
	}

	dir, err := GetGlobalConfigDir()
	if err != nil {
		return "./.planperfect/data"
	}
	return filepath.Join(dir, "data")
}

// GetLogPath returns the log file path ("log.path" or ~/.planperfect/logs/planperfect.log).
func GetLogPath() string {
	if path := viper.GetString("log.path"); path != "" {
		return path
	}
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return filepath.Join(".planperfect", "logs", "planperfect.log")
	}
	return filepath.Join(dir, "logs", "planperfect.log")
}
