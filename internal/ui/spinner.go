package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Spinner is a simple text-based spinner for non-TUI waits.
type Spinner struct {
	chars    []string
	delay    time.Duration
	suffix   string
	out      io.Writer
	stopChan chan struct{}
	wg       sync.WaitGroup
	active   bool
	mu       sync.Mutex
}

// NewSpinner creates a spinner writing to stderr.
func NewSpinner(suffix string) *Spinner {
	return NewSpinnerTo(os.Stderr, suffix)
}

// NewSpinnerTo creates a spinner writing to out.
func NewSpinnerTo(out io.Writer, suffix string) *Spinner {
	return &Spinner{
		chars:    []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		delay:    100 * time.Millisecond,
		suffix:   suffix,
		out:      out,
		stopChan: make(chan struct{}),
	}
}

// SetSuffix changes the label next to the spinner.
func (s *Spinner) SetSuffix(suffix string) {
	s.mu.Lock()
	s.suffix = suffix
	s.mu.Unlock()
}

// Start starts the spinner in a background goroutine
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.delay)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				i = (i + 1) % len(s.chars)
				s.mu.Lock()
				suffix := s.suffix
				s.mu.Unlock()
				fmt.Fprintf(s.out, "\r\033[K%s %s", StylePrimary.Render(s.chars[i]), suffix)
			}
		}
	}()
}

// Stop stops the spinner and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprint(s.out, "\r\033[K")
}
