package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/planperfect/planperfect/internal/notify"
)

// toastTTL is how long a settled toast stays on screen in a TUI.
const toastTTL = 4 * time.Second

var toastIcons = map[notify.Level]string{
	notify.LevelInfo:    "ℹ",
	notify.LevelSuccess: "✓",
	notify.LevelWarning: "!",
	notify.LevelError:   "✗",
	notify.LevelLoading: "…",
}

var toastStyles = map[notify.Level]lipgloss.Style{
	notify.LevelInfo:    StylePrefixInfo,
	notify.LevelSuccess: StylePrefixDone,
	notify.LevelWarning: StylePrefixWarn,
	notify.LevelError:   StylePrefixError,
	notify.LevelLoading: StylePrefixThinking,
}

// RenderToast renders a toast as one styled line.
func RenderToast(t notify.Toast) string {
	style, ok := toastStyles[t.Level]
	if !ok {
		style = StyleText
	}
	return style.Render(toastIcons[t.Level]) + " " + t.Message
}

// WriterSink prints toasts line by line. A replacement prints the settled
// state on a new line.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Show(t notify.Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, RenderToast(t))
}

// ToastMsg carries a toast into a running program.
type ToastMsg notify.Toast

// toastStack is the toast area of a TUI model. Replacements update in
// place; settled toasts expire after toastTTL.
type toastStack struct {
	items []notify.Toast
	max   int
}

func newToastStack(max int) toastStack {
	return toastStack{max: max}
}

func (s toastStack) push(t notify.Toast) toastStack {
	items := make([]notify.Toast, 0, len(s.items)+1)
	replaced := false
	for _, it := range s.items {
		if it.ID == t.ID {
			it = t
			replaced = true
		}
		items = append(items, it)
	}
	if !replaced {
		items = append(items, t)
	}
	if s.max > 0 && len(items) > s.max {
		items = items[len(items)-s.max:]
	}
	s.items = items
	return s
}

func (s toastStack) prune(now time.Time) toastStack {
	items := make([]notify.Toast, 0, len(s.items))
	for _, it := range s.items {
		if it.Level == notify.LevelLoading || now.Sub(it.Time) < toastTTL {
			items = append(items, it)
		}
	}
	s.items = items
	return s
}

func (s toastStack) view() string {
	if len(s.items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.items))
	for _, it := range s.items {
		lines = append(lines, RenderToast(it))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

type toastTickMsg time.Time

func toastTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return toastTickMsg(t) })
}

func notifyToast(m ToastMsg) notify.Toast { return notify.Toast(m) }
