package ui

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/planperfect/planperfect/internal/notify"
)

// latest hands the newest value to a consumer goroutine, dropping values
// superseded before they were read. put never blocks, so it is safe to
// call from inside a program's Update.
type latest[T any] struct {
	ch chan T
}

func newLatest[T any]() *latest[T] {
	return &latest[T]{ch: make(chan T, 1)}
}

func (l *latest[T]) put(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// forward sends every value to p until ctx ends.
func (l *latest[T]) forward(ctx context.Context, p *tea.Program, wrap func(T) tea.Msg) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-l.ch:
			p.Send(wrap(v))
		}
	}
}

// toastQueueSize bounds toasts waiting for the program to read them.
const toastQueueSize = 64

// ProgramSink forwards toasts to a bubbletea program once attached.
// Toasts shown while detached are dropped.
type ProgramSink struct {
	mu     sync.Mutex
	queue  chan ToastMsg
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Attach starts forwarding to p. A nil p detaches.
func (s *ProgramSink) Attach(p *tea.Program) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.queue = nil
	}
	var (
		ctx   context.Context
		queue chan ToastMsg
	)
	if p != nil {
		ctx, s.cancel = context.WithCancel(context.Background())
		queue = make(chan ToastMsg, toastQueueSize)
		s.queue = queue
	}
	s.mu.Unlock()

	s.wg.Wait()
	if p == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-queue:
				p.Send(t)
			}
		}
	}()
}

func (s *ProgramSink) Show(t notify.Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return
	}
	select {
	case s.queue <- ToastMsg(t):
	default:
		slog.Debug("toast dropped", "id", t.ID, "message", t.Message)
	}
}
