package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")
	setDefaults()
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	resetViper(t)

	var cfg types.AppConfig
	require.NoError(t, loadAppConfig(&cfg))

	assert.Equal(t, config.DefaultAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, int(config.DefaultAPITimeout.Seconds()), cfg.API.TimeoutSeconds)
	assert.Equal(t, config.RealtimeMemory, cfg.Realtime.Driver)
	assert.Equal(t, config.DefaultPreviewAddr, cfg.Preview.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Log.Path)
	assert.NotEmpty(t, cfg.Data.Dir)
}

func TestLoadAppConfig_FromFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `api:
  baseURL: https://api.example.com
  key: secret
  timeoutSeconds: 30
realtime:
  driver: nats
  url: nats://127.0.0.1:4222
data:
  dir: /tmp/planperfect-test
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	var cfg types.AppConfig
	require.NoError(t, loadAppConfig(&cfg))

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Key)
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
	assert.Equal(t, "nats", cfg.Realtime.Driver)
	assert.Equal(t, "/tmp/planperfect-test", cfg.Data.Dir)
}

func TestValidateAppConfig(t *testing.T) {
	valid := func() types.AppConfig {
		return types.AppConfig{
			API:      types.APIConfig{BaseURL: "https://api.example.com", TimeoutSeconds: 60},
			Realtime: types.RealtimeConfig{Driver: config.RealtimeMemory},
			Preview:  types.PreviewConfig{Addr: "127.0.0.1:0"},
			Log:      types.LogConfig{Level: "info", MaxSizeMB: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*types.AppConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*types.AppConfig) {}},
		{
			name:    "bad base url",
			mutate:  func(c *types.AppConfig) { c.API.BaseURL = "not a url" },
			wantErr: "BaseURL",
		},
		{
			name:    "timeout too short",
			mutate:  func(c *types.AppConfig) { c.API.TimeoutSeconds = 1 },
			wantErr: "TimeoutSeconds",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *types.AppConfig) { c.Realtime.Driver = "redis" },
			wantErr: "Driver",
		},
		{
			name:    "firebase needs a url",
			mutate:  func(c *types.AppConfig) { c.Realtime.Driver = config.RealtimeFirebase },
			wantErr: "realtime.url is required",
		},
		{
			name: "firebase with url",
			mutate: func(c *types.AppConfig) {
				c.Realtime.Driver = config.RealtimeFirebase
				c.Realtime.URL = "https://planperfect.firebaseio.com"
			},
		},
		{
			name:    "bad log level",
			mutate:  func(c *types.AppConfig) { c.Log.Level = "trace" },
			wantErr: "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := validateAppConfig(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
