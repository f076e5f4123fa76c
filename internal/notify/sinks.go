package notify

import (
	"log/slog"
	"sync"
)

// Recorder keeps every toast it is shown. Replacements update in place, so
// Current reflects what a user would see.
type Recorder struct {
	mu      sync.Mutex
	history []Toast
	order   []string
	current map[string]Toast
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{current: make(map[string]Toast)}
}

func (r *Recorder) Show(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, t)
	if _, seen := r.current[t.ID]; !seen {
		r.order = append(r.order, t.ID)
	}
	r.current[t.ID] = t
}

// History returns every Show call in order.
func (r *Recorder) History() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.history))
	copy(out, r.history)
	return out
}

// Current returns the latest state of each toast, oldest first.
func (r *Recorder) Current() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.current[id])
	}
	return out
}

// Levels returns the current level of each toast, oldest first.
func (r *Recorder) Levels() []Level {
	var levels []Level
	for _, t := range r.Current() {
		levels = append(levels, t.Level)
	}
	return levels
}

// LogSink mirrors toasts into the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Show(t Toast) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch t.Level {
	case LevelError:
		logger.Warn("toast", "id", t.ID, "level", string(t.Level), "message", t.Message)
	default:
		logger.Debug("toast", "id", t.ID, "level", string(t.Level), "message", t.Message)
	}
}
