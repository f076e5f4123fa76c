// Package notify is the user-facing notification service: short messages
// that appear, and for long operations a loading message that is later
// replaced in place by a success or error message.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/planperfect/planperfect/internal/api"
)

// Level is the severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelLoading Level = "loading"
)

// GenericError is shown when a failure has no user-safe message.
const GenericError = "Something went wrong. Please try again."

// Toast is a single notification. Replacing a toast reuses its ID.
type Toast struct {
	ID      string
	Level   Level
	Message string
	Time    time.Time
}

// Sink renders toasts. Show is called for new toasts and for replacements
// of an existing ID.
type Sink interface {
	Show(t Toast)
}

// Notifier is what components depend on.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Warning(msg string)
	Error(msg string)
	Report(err error, fallback string)
}

// Messages are the three texts of a promise-bound toast.
type Messages struct {
	Loading string
	Success string
	Error   string
}

// Service fans toasts out to its sinks.
type Service struct {
	mu    sync.Mutex
	sinks []Sink
	now   func() time.Time
}

// New creates a Service writing to sinks.
func New(sinks ...Sink) *Service {
	return &Service{sinks: sinks, now: time.Now}
}

// AddSink attaches another sink.
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

func (s *Service) emit(id string, level Level, msg string) string {
	if id == "" {
		id = uuid.NewString()
	}
	t := Toast{ID: id, Level: level, Message: msg, Time: s.now()}

	s.mu.Lock()
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.Show(t)
	}
	return id
}

func (s *Service) Info(msg string)    { s.emit("", LevelInfo, msg) }
func (s *Service) Success(msg string) { s.emit("", LevelSuccess, msg) }
func (s *Service) Warning(msg string) { s.emit("", LevelWarning, msg) }
func (s *Service) Error(msg string)   { s.emit("", LevelError, msg) }

// Report shows err the way every call site used to do by hand: a user error
// verbatim, anything else logged with detail and replaced by fallback.
func (s *Service) Report(err error, fallback string) {
	if err == nil {
		return
	}
	if msg, ok := api.UserMessage(err); ok {
		s.Error(msg)
		return
	}
	slog.Error("request failed", "kind", api.KindOf(err).String(), "error", err)
	if fallback == "" {
		fallback = GenericError
	}
	s.Error(fallback)
}

// Promise runs fn behind a loading toast and replaces it with the outcome.
// A user error replaces the error text with the backend's message.
func (s *Service) Promise(ctx context.Context, msgs Messages, fn func(context.Context) error) error {
	id := s.emit("", LevelLoading, msgs.Loading)

	err := fn(ctx)
	if err == nil {
		s.emit(id, LevelSuccess, msgs.Success)
		return nil
	}

	text := msgs.Error
	if msg, ok := api.UserMessage(err); ok {
		text = msg
	} else {
		slog.Error("request failed", "kind", api.KindOf(err).String(), "error", err)
	}
	if text == "" {
		text = GenericError
	}
	s.emit(id, LevelError, text)
	return err
}
