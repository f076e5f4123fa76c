package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	viper.Reset()
	t.Setenv("HOME", t.TempDir())

	b := bytes.NewBufferString("")
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs([]string{"--help"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	assert.NoError(t, err)

	output := b.String()
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Available Commands:")
	for _, name := range []string{"onboard", "recommend", "agent", "document", "upload", "detect", "auth", "doctor"} {
		assert.Contains(t, output, name)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	paths := [][]string{
		{"onboard", "new"},
		{"onboard", "existing"},
		{"recommend", "list"},
		{"recommend", "save"},
		{"recommend", "unsave"},
		{"recommend", "not-relevant"},
		{"recommend", "saved"},
		{"agent", "ask"},
		{"agent", "history"},
		{"agent", "clear"},
		{"document", "generate"},
		{"auth", "login"},
		{"auth", "logout"},
		{"auth", "whoami"},
		{"config", "show"},
		{"config", "set-api"},
		{"config", "telemetry", "status"},
		{"themes"},
		{"version"},
	}
	for _, p := range paths {
		found, _, err := rootCmd.Find(p)
		require.NoError(t, err, p)
		assert.Equal(t, p[len(p)-1], found.Name(), p)
	}
}

func TestCommandName(t *testing.T) {
	found, _, err := rootCmd.Find([]string{"recommend", "list"})
	require.NoError(t, err)
	assert.Equal(t, "recommend list", commandName(found))
	assert.Equal(t, "planperfect", commandName(rootCmd))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "user", errorKind(&api.Error{Kind: api.KindUser}))
	assert.Equal(t, "network", errorKind(&api.Error{Kind: api.KindNetwork}))
	assert.Equal(t, "internal", errorKind(errors.New("boom")))
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "0.1.0", GetVersion())
}
