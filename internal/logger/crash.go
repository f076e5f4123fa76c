// Package logger sets up structured logging and crash reports for PlanPerfect.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// CrashLogDir is the crash report directory under the base path.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is how many reports are kept.
	MaxCrashLogs = 10
)

type crashContext struct {
	mu         sync.RWMutex
	command    string
	version    string
	basePath   string
	lastAction string
	step       string
}

var globalContext = &crashContext{}

// SetBasePath sets where crash reports are written (usually ~/.planperfect).
func SetBasePath(path string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.basePath = path
}

// SetVersion records the build version.
func SetVersion(version string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.version = version
}

// SetCommand records the command being run.
func SetCommand(cmd string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.command = cmd
}

// SetLastAction records the last backend call, e.g. "POST /agent/query".
func SetLastAction(action string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.lastAction = truncateForLog(strings.TrimSpace(action), 300)
}

// SetWizardStep records the onboarding step on screen.
func SetWizardStep(step string) {
	globalContext.mu.Lock()
	defer globalContext.mu.Unlock()
	globalContext.step = step
}

func truncateForLog(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// CrashLog is one crash report.
type CrashLog struct {
	Timestamp  time.Time
	Version    string
	Command    string
	PanicValue string
	StackTrace string
	LastAction string
	WizardStep string
	GoVersion  string
	Platform   string
}

// HandlePanic recovers a panic, writes a crash report and exits.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	log := createCrashLog(r)
	path, err := writeCrashLog(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] Failed to write crash log: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] Panic: %v\n%s\n", r, log.StackTrace)
		os.Exit(2)
	}

	fmt.Fprintf(os.Stderr, "\nPlanPerfect stopped unexpectedly.\n")
	fmt.Fprintf(os.Stderr, "A crash report was saved to:\n  %s\n\n", path)
	os.Exit(2)
}

func createCrashLog(panicValue any) CrashLog {
	globalContext.mu.RLock()
	defer globalContext.mu.RUnlock()

	return CrashLog{
		Timestamp:  time.Now(),
		Version:    globalContext.version,
		Command:    globalContext.command,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		LastAction: globalContext.lastAction,
		WizardStep: globalContext.step,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func writeCrashLog(log CrashLog) (string, error) {
	dir := crashLogDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}
	if err := pruneCrashLogs(dir, MaxCrashLogs-1); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to clean old crash logs: %v\n", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("crash_%s.log", log.Timestamp.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(formatCrashLog(log)), 0644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	return path, nil
}

func crashLogDir() string {
	globalContext.mu.RLock()
	basePath := globalContext.basePath
	globalContext.mu.RUnlock()
	if basePath == "" {
		basePath = ".planperfect"
	}
	return filepath.Join(basePath, CrashLogDir)
}

func formatCrashLog(log CrashLog) string {
	rule := strings.Repeat("-", 72)
	var sb strings.Builder
	fmt.Fprintf(&sb, "PLANPERFECT CRASH REPORT\n%s\n", rule)
	fmt.Fprintf(&sb, "Timestamp:   %s\n", log.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:     %s\n", log.Version)
	fmt.Fprintf(&sb, "Command:     %s\n", log.Command)
	fmt.Fprintf(&sb, "Go:          %s (%s)\n", log.GoVersion, log.Platform)
	if log.WizardStep != "" {
		fmt.Fprintf(&sb, "Wizard step: %s\n", log.WizardStep)
	}
	if log.LastAction != "" {
		fmt.Fprintf(&sb, "Last call:   %s\n", log.LastAction)
	}
	fmt.Fprintf(&sb, "%s\nPANIC\n%s\n%s\n", rule, rule, log.PanicValue)
	fmt.Fprintf(&sb, "%s\nSTACK\n%s\n%s", rule, rule, log.StackTrace)
	return sb.String()
}

// pruneCrashLogs deletes the oldest reports so at most keep remain.
func pruneCrashLogs(dir string, keep int) error {
	logs, err := listCrashLogs(dir)
	if err != nil || len(logs) <= keep {
		return err
	}
	for _, p := range logs[:len(logs)-keep] {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func listCrashLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, filepath.Join(dir, e.Name()))
		}
	}
	// Names embed the timestamp, so lexical order is chronological.
	slices.Sort(logs)
	return logs, nil
}

// ListCrashLogs returns saved crash reports, oldest first.
func ListCrashLogs() ([]string, error) {
	return listCrashLogs(crashLogDir())
}
