// Package progress drives the staged progress display shown while the
// backend extracts a floor plan or analyses a room photo.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the tracker phase. The only path is
// Idle → Preparing → Running(k)… → Completed, with Failed → Preparing on Retry.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// completionDelay keeps the completed checkmark on screen before the
// completion callback fires.
var completionDelay = 1200 * time.Millisecond

// DefaultCadence is how often the displayed stage advances while waiting.
const DefaultCadence = 2 * time.Second

var (
	ErrInFlight  = errors.New("request already in flight")
	ErrNotIdle   = errors.New("tracker already started")
	ErrNotFailed = errors.New("retry is only available after a failure")
	ErrNoStages  = errors.New("tracker needs at least one stage")
	ErrNoRequest = errors.New("tracker needs a request")
)

// Snapshot is what the display renders.
type Snapshot struct {
	State State
	Stage int // index into Stages, valid for Running and Completed
	Label string
	Err   error
}

// Request is the backend call being tracked.
type Request func(ctx context.Context) error

// Tracker runs one Request at a time and reports staged progress.
type Tracker struct {
	stages     []string
	request    Request
	onComplete func()
	cadence    time.Duration

	mu        sync.Mutex
	snap      Snapshot
	inFlight  bool
	observers map[int]func(Snapshot)
	nextObs   int
	wg        sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCadence sets how often the displayed stage advances.
func WithCadence(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.cadence = d
		}
	}
}

// OnComplete sets the callback invoked after a successful run.
func OnComplete(fn func()) Option {
	return func(t *Tracker) { t.onComplete = fn }
}

// New creates an idle tracker.
func New(stages []string, request Request, opts ...Option) (*Tracker, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	if request == nil {
		return nil, ErrNoRequest
	}
	t := &Tracker{
		stages:    append([]string(nil), stages...),
		request:   request,
		cadence:   DefaultCadence,
		observers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Stages returns the stage labels.
func (t *Tracker) Stages() []string { return append([]string(nil), t.stages...) }

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Subscribe registers fn for every state change.
func (t *Tracker) Subscribe(fn func(Snapshot)) func() {
	t.mu.Lock()
	id := t.nextObs
	t.nextObs++
	t.observers[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.observers, id)
			t.mu.Unlock()
		})
	}
}

// Start runs the request. It is the explicit trigger used when the parent
// must sequence the start itself.
func (t *Tracker) Start(ctx context.Context) error {
	return t.begin(ctx, StateIdle, ErrNotIdle)
}

// AutoStart starts the request once ready is true. It is a no-op when the
// inputs are not ready or the tracker has already started.
func (t *Tracker) AutoStart(ctx context.Context, ready bool) bool {
	if !ready {
		return false
	}
	return t.begin(ctx, StateIdle, ErrNotIdle) == nil
}

// Retry re-runs the same request from Preparing after a failure.
func (t *Tracker) Retry(ctx context.Context) error {
	return t.begin(ctx, StateFailed, ErrNotFailed)
}

// Wait blocks until the current run, including the completion callback, ends.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) begin(ctx context.Context, from State, wrongState error) error {
	t.mu.Lock()
	if t.inFlight {
		t.mu.Unlock()
		return ErrInFlight
	}
	if t.snap.State != from {
		t.mu.Unlock()
		return wrongState
	}
	t.inFlight = true
	t.wg.Add(1)
	obs := t.storeLocked(Snapshot{State: StatePreparing, Label: "Preparing"})
	t.mu.Unlock()

	notifyAll(obs, Snapshot{State: StatePreparing, Label: "Preparing"})
	go t.run(ctx)
	return nil
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()

	done := make(chan error, 1)
	go func() { done <- t.request(ctx) }()

	ticker := time.NewTicker(t.cadence)
	defer ticker.Stop()

	stage := -1
	var err error
wait:
	for {
		select {
		case err = <-done:
			break wait
		case <-ticker.C:
			// The last stage holds until the request answers.
			if stage < len(t.stages)-1 {
				stage++
				t.set(Snapshot{State: StateRunning, Stage: stage, Label: t.stages[stage]})
			}
		}
	}

	if err != nil {
		slog.Debug("tracked request failed", "error", err)
		t.finish(Snapshot{State: StateFailed, Stage: max(stage, 0), Label: "Failed", Err: err})
		return
	}

	last := len(t.stages) - 1
	t.finish(Snapshot{State: StateCompleted, Stage: last, Label: t.stages[last]})

	if t.onComplete == nil {
		return
	}
	timer := time.NewTimer(completionDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		t.onComplete()
	case <-ctx.Done():
	}
}

func (t *Tracker) finish(s Snapshot) {
	t.mu.Lock()
	t.inFlight = false
	obs := t.storeLocked(s)
	t.mu.Unlock()
	notifyAll(obs, s)
}

func (t *Tracker) set(s Snapshot) {
	t.mu.Lock()
	obs := t.storeLocked(s)
	t.mu.Unlock()
	notifyAll(obs, s)
}

func (t *Tracker) storeLocked(s Snapshot) []func(Snapshot) {
	t.snap = s
	obs := make([]func(Snapshot), 0, len(t.observers))
	for _, fn := range t.observers {
		obs = append(obs, fn)
	}
	return obs
}

func notifyAll(obs []func(Snapshot), s Snapshot) {
	for _, fn := range obs {
		fn(s)
	}
}
