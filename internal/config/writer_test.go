package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func withConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := GetGlobalConfigDir
	GetGlobalConfigDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { GetGlobalConfigDir = orig })
	return dir
}

func TestSaveGlobalAPIConfig_NewFile(t *testing.T) {
	dir := withConfigDir(t)

	require.NoError(t, SaveGlobalAPIConfig("https://api.example.com", "k:with#chars"))

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)

	var doc struct {
		API struct {
			BaseURL string `yaml:"baseURL"`
			Key     string `yaml:"key"`
		} `yaml:"api"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "https://api.example.com", doc.API.BaseURL)
	assert.Equal(t, "k:with#chars", doc.API.Key)

	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveGlobalAPIConfig_KeepsOtherKeys(t *testing.T) {
	dir := withConfigDir(t)
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("realtime:\n  driver: nats\napi:\n  key: old\n"), 0600))

	require.NoError(t, SaveGlobalAPIConfig("https://b.example.com", ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Version  string            `yaml:"version"`
		Realtime map[string]string `yaml:"realtime"`
		API      map[string]string `yaml:"api"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))

	assert.Equal(t, "1", doc.Version)
	assert.Equal(t, "nats", doc.Realtime["driver"])
	assert.Equal(t, "old", doc.API["key"], "empty key leaves the stored key alone")
	assert.Equal(t, "https://b.example.com", doc.API["baseURL"])
}

func TestSaveGlobalAPIConfig_RequiresBaseURL(t *testing.T) {
	withConfigDir(t)
	assert.Error(t, SaveGlobalAPIConfig("", "k"))
}
