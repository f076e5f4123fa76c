package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrashContext(t *testing.T) {
	globalContext = &crashContext{}

	SetBasePath("/tmp/pp")
	SetVersion("1.2.3")
	SetCommand("onboard new")
	SetWizardStep("extraction")
	SetLastAction(strings.Repeat("x", 400))

	log := createCrashLog("boom")
	assert.Equal(t, "boom", log.PanicValue)
	assert.Equal(t, "1.2.3", log.Version)
	assert.Equal(t, "onboard new", log.Command)
	assert.Equal(t, "extraction", log.WizardStep)
	assert.Contains(t, log.LastAction, "[truncated]")
	assert.NotEmpty(t, log.StackTrace)
}

func TestFormatCrashLog(t *testing.T) {
	out := formatCrashLog(CrashLog{
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Version:    "1.0.0",
		Command:    "agent",
		PanicValue: "nil map",
		LastAction: "POST /agent/query",
		StackTrace: "goroutine 1",
	})
	assert.Contains(t, out, "PLANPERFECT CRASH REPORT")
	assert.Contains(t, out, "Last call:   POST /agent/query")
	assert.NotContains(t, out, "Wizard step")
	assert.Contains(t, out, "goroutine 1")
}

func TestWriteCrashLog_Prunes(t *testing.T) {
	dir := t.TempDir()
	globalContext = &crashContext{basePath: dir}

	logDir := filepath.Join(dir, CrashLogDir)
	require.NoError(t, os.MkdirAll(logDir, 0755))
	for i := range MaxCrashLogs + 3 {
		name := fmt.Sprintf("crash_20250101_0000%02d.log", i)
		require.NoError(t, os.WriteFile(filepath.Join(logDir, name), []byte("old"), 0644))
	}

	path, err := writeCrashLog(createCrashLog("test"))
	require.NoError(t, err)

	logs, err := ListCrashLogs()
	require.NoError(t, err)
	assert.Len(t, logs, MaxCrashLogs)
	assert.Equal(t, path, logs[len(logs)-1], "the new report is kept")
}

func TestSetup_WritesToFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "logs", "pp.log")
	closer, err := Setup(Options{Path: path, Level: "debug"})
	require.NoError(t, err)

	slog.Debug("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, string(data), "app=planperfect")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
