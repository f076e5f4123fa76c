// Package wizard runs the onboarding flows as explicit state machines.
//
// A flow is an ordered list of steps over a state value S. Input steps gate
// Next on a completion predicate; processing steps call the backend as soon
// as they are entered and block navigation until the call answers.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/planperfect/planperfect/internal/progress"
)

// Phase is where the machine is within the current step.
type Phase int

const (
	PhaseEditing Phase = iota
	PhaseProcessing
	PhaseFailed
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "editing"
	case PhaseProcessing:
		return "processing"
	case PhaseFailed:
		return "failed"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Event drives the machine.
type Event int

const (
	EventNext Event = iota
	EventPrev
	EventJump
	EventSucceeded
	EventFailed
	EventRetry
)

func (e Event) String() string {
	switch e {
	case EventNext:
		return "next"
	case EventPrev:
		return "prev"
	case EventJump:
		return "jump"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventRetry:
		return "retry"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// target is the result of a transition. enterStep means the phase is decided
// by the step being entered: Editing for input, Processing for processing,
// Done past the last step.
type target int

const (
	enterStep target = iota
	toFailed
	toProcessing
)

// transitions is the whole machine. A missing entry is an illegal move.
var transitions = map[Phase]map[Event]target{
	PhaseEditing: {
		EventNext: enterStep,
		EventPrev: enterStep,
		EventJump: enterStep,
	},
	PhaseProcessing: {
		EventSucceeded: enterStep,
		EventFailed:    toFailed,
	},
	PhaseFailed: {
		EventRetry: toProcessing,
		EventPrev:  enterStep,
		EventJump:  enterStep,
	},
	PhaseDone: {},
}

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrStepIncomplete    = errors.New("step is not complete")
	ErrAtFirstStep       = errors.New("already at the first step")
	ErrJumpBlocked       = errors.New("cannot jump to that step")
	ErrBusy              = errors.New("a step is processing")
)

// Kind separates input steps from processing steps.
type Kind int

const (
	KindInput Kind = iota
	KindProcessing
)

// Step is one screen of a flow.
type Step[S any] struct {
	ID    string
	Title string
	Icon  string
	Kind  Kind

	// Complete gates Next on input steps. Nil means always complete.
	Complete func(S) bool

	// Process is the backend call of a processing step. It receives a copy
	// of the state and returns the updated state.
	Process func(ctx context.Context, s S) (S, error)

	// Stages, when set, are shown through a progress tracker while Process
	// runs. The tracker holds the completed stage briefly before advancing.
	Stages []string
}

// Status is what observers receive.
type Status struct {
	Index    int
	Total    int
	StepID   string
	Title    string
	Phase    Phase
	Err      error
	Furthest int
	Progress *progress.Snapshot
}

// Machine runs a flow over state S.
type Machine[S any] struct {
	steps []Step[S]

	mu        sync.Mutex
	state     S
	index     int
	phase     Phase
	err       error
	furthest  int
	processed map[int]bool
	tracker   *progress.Tracker
	observers map[int]func(Status)
	nextObs   int
	runs      sync.WaitGroup
}

// New creates a machine on the first step. A flow that starts with a
// processing step does not run it until Start.
func New[S any](steps []Step[S], initial S) (*Machine[S], error) {
	if len(steps) == 0 {
		return nil, errors.New("wizard needs at least one step")
	}
	for i, st := range steps {
		if st.Kind == KindProcessing && st.Process == nil {
			return nil, fmt.Errorf("step %d (%s) is a processing step without Process", i, st.ID)
		}
	}
	return &Machine[S]{
		steps:     steps,
		state:     initial,
		processed: make(map[int]bool),
		observers: make(map[int]func(Status)),
	}, nil
}

// Steps returns the flow's steps.
func (m *Machine[S]) Steps() []Step[S] { return m.steps }

// State returns a copy of the state.
func (m *Machine[S]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Edit changes the state from an input step. It is refused while a step is
// processing or after the flow is done.
func (m *Machine[S]) Edit(fn func(*S)) error {
	m.mu.Lock()
	if m.phase == PhaseProcessing || m.phase == PhaseDone {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("%w: edit while %s", ErrBusy, phase)
	}
	fn(&m.state)
	st := m.statusLocked()
	obs := m.observersLocked()
	m.mu.Unlock()

	notify(obs, st)
	return nil
}

// Status returns the current position.
func (m *Machine[S]) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// CanNext reports whether Next would move.
func (m *Machine[S]) CanNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == PhaseEditing && m.completeLocked(m.index)
}

// CanPrev reports whether Prev would move.
func (m *Machine[S]) CanPrev() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := transitions[m.phase][EventPrev]
	return ok && m.prevInputLocked() >= 0
}

// Subscribe registers fn for every change.
func (m *Machine[S]) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// Start runs the first step when it is a processing step.
func (m *Machine[S]) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.index != 0 || m.phase != PhaseEditing || m.steps[0].Kind != KindProcessing || m.processed[0] {
		m.mu.Unlock()
		return nil
	}
	return m.enterLocked(ctx, 0)
}

// Next advances when the current step is complete.
func (m *Machine[S]) Next(ctx context.Context) error {
	m.mu.Lock()
	if err := m.allowedLocked(EventNext); err != nil {
		m.mu.Unlock()
		return err
	}
	if !m.completeLocked(m.index) {
		id := m.steps[m.index].ID
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStepIncomplete, id)
	}
	return m.enterLocked(ctx, m.index+1)
}

// Prev goes back to the closest earlier input step. Processing steps are
// not re-run by going back.
func (m *Machine[S]) Prev(ctx context.Context) error {
	m.mu.Lock()
	if err := m.allowedLocked(EventPrev); err != nil {
		m.mu.Unlock()
		return err
	}
	prev := m.prevInputLocked()
	if prev < 0 {
		m.mu.Unlock()
		return ErrAtFirstStep
	}
	return m.enterLocked(ctx, prev)
}

// Jump moves to an input step from the step indicator. Going back is
// allowed to any visited step. Going forward requires every step in
// between to be complete, so the indicator cannot skip a gate.
func (m *Machine[S]) Jump(ctx context.Context, to int) error {
	m.mu.Lock()
	if err := m.allowedLocked(EventJump); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.jumpableLocked(to); err != nil {
		m.mu.Unlock()
		return err
	}
	return m.enterLocked(ctx, to)
}

// CanJump reports whether Jump(to) would move.
func (m *Machine[S]) CanJump(to int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowedLocked(EventJump) == nil && m.jumpableLocked(to) == nil
}

// Retry re-runs the failed processing step.
func (m *Machine[S]) Retry(ctx context.Context) error {
	m.mu.Lock()
	if err := m.allowedLocked(EventRetry); err != nil {
		m.mu.Unlock()
		return err
	}
	m.phase = PhaseProcessing
	m.err = nil
	tracker := m.tracker
	if tracker == nil {
		m.runLocked(ctx, m.index)
	} else {
		m.runs.Add(1)
	}
	st, obs := m.statusLocked(), m.observersLocked()
	m.mu.Unlock()

	notify(obs, st)
	if tracker != nil {
		return m.startTracker(ctx, tracker, tracker.Retry)
	}
	return nil
}

// Wait blocks until no processing step is running.
func (m *Machine[S]) Wait() { m.runs.Wait() }

func (m *Machine[S]) allowedLocked(ev Event) error {
	if _, ok := transitions[m.phase][ev]; !ok {
		return fmt.Errorf("%w: %s while %s", ErrIllegalTransition, ev, m.phase)
	}
	return nil
}

func (m *Machine[S]) jumpableLocked(to int) error {
	switch {
	case to < 0 || to >= len(m.steps):
		return fmt.Errorf("%w: step %d out of range", ErrJumpBlocked, to)
	case m.steps[to].Kind == KindProcessing:
		return fmt.Errorf("%w: %s is a processing step", ErrJumpBlocked, m.steps[to].ID)
	case to == m.index:
		return fmt.Errorf("%w: already on %s", ErrJumpBlocked, m.steps[to].ID)
	case to < m.index:
		return nil
	}
	for i := m.index; i < to; i++ {
		if !m.completeLocked(i) {
			return fmt.Errorf("%w: %s is not complete", ErrJumpBlocked, m.steps[i].ID)
		}
	}
	return nil
}

// completeLocked reports whether step i may be left forward.
func (m *Machine[S]) completeLocked(i int) bool {
	st := m.steps[i]
	if st.Kind == KindProcessing {
		return m.processed[i]
	}
	return st.Complete == nil || st.Complete(m.state)
}

func (m *Machine[S]) prevInputLocked() int {
	for i := m.index - 1; i >= 0; i-- {
		if m.steps[i].Kind == KindInput {
			return i
		}
	}
	return -1
}

// enterLocked moves to step i and unlocks. Entering a processing step
// starts its request.
func (m *Machine[S]) enterLocked(ctx context.Context, i int) error {
	m.err = nil
	m.tracker = nil
	if i < m.index {
		// Going back invalidates later processing results.
		for k := range m.processed {
			if k > i {
				delete(m.processed, k)
			}
		}
	}
	switch {
	case i >= len(m.steps):
		m.phase = PhaseDone
	case m.steps[i].Kind == KindProcessing:
		m.index = i
		m.phase = PhaseProcessing
		m.processed[i] = false
	default:
		m.index = i
		m.phase = PhaseEditing
	}
	if m.index > m.furthest {
		m.furthest = m.index
	}

	var tracker *progress.Tracker
	if m.phase == PhaseProcessing {
		tracker = m.prepareLocked(ctx, m.index)
	}
	st, obs := m.statusLocked(), m.observersLocked()
	m.mu.Unlock()

	slog.Debug("wizard step entered", "step", st.StepID, "phase", st.Phase.String())
	notify(obs, st)
	if tracker != nil {
		return m.startTracker(ctx, tracker, tracker.Start)
	}
	return nil
}

// startTracker runs start and keeps Wait blocked until the tracker's run,
// completion delay included, is over. The caller has already counted the
// run in m.runs.
func (m *Machine[S]) startTracker(ctx context.Context, t *progress.Tracker, start func(context.Context) error) error {
	if err := start(ctx); err != nil {
		m.runs.Done()
		return err
	}
	go func() {
		defer m.runs.Done()
		t.Wait()
	}()
	return nil
}

// prepareLocked sets up the run of processing step i. With stages it
// returns a tracker for the caller to start once unlocked; otherwise the
// request is launched directly.
func (m *Machine[S]) prepareLocked(ctx context.Context, i int) *progress.Tracker {
	step := m.steps[i]
	if len(step.Stages) == 0 {
		m.runLocked(ctx, i)
		return nil
	}

	var result S
	tracker, err := progress.New(step.Stages,
		func(ctx context.Context) error {
			var err error
			result, err = step.Process(ctx, m.State())
			return err
		},
		progress.OnComplete(func() { m.finish(ctx, i, result, nil) }),
	)
	if err != nil {
		// Stages are non-empty and Process is set, so New cannot fail here.
		panic(err)
	}
	tracker.Subscribe(func(s progress.Snapshot) {
		if s.State == progress.StateFailed {
			var zero S
			m.finish(ctx, i, zero, s.Err)
			return
		}
		m.publish()
	})
	m.tracker = tracker
	m.runs.Add(1)
	return tracker
}

func (m *Machine[S]) runLocked(ctx context.Context, i int) {
	step := m.steps[i]
	state := m.state
	m.runs.Add(1)
	go func() {
		defer m.runs.Done()
		result, err := step.Process(ctx, state)
		m.finish(ctx, i, result, err)
	}()
}

// finish applies the outcome of processing step i.
func (m *Machine[S]) finish(ctx context.Context, i int, result S, err error) {
	m.mu.Lock()
	if m.phase != PhaseProcessing || m.index != i {
		m.mu.Unlock()
		return
	}
	if err != nil {
		if _, ok := transitions[m.phase][EventFailed]; !ok {
			m.mu.Unlock()
			return
		}
		m.phase = PhaseFailed
		m.err = err
		st, obs := m.statusLocked(), m.observersLocked()
		m.mu.Unlock()
		slog.Debug("wizard step failed", "step", st.StepID, "error", err)
		notify(obs, st)
		return
	}
	m.state = result
	m.processed[i] = true
	// Processing steps advance on their own.
	if err := m.enterLocked(ctx, i+1); err != nil {
		slog.Warn("wizard could not enter next step", "error", err)
	}
}

func (m *Machine[S]) publish() {
	m.mu.Lock()
	st, obs := m.statusLocked(), m.observersLocked()
	m.mu.Unlock()
	notify(obs, st)
}

func (m *Machine[S]) statusLocked() Status {
	st := Status{
		Index:    m.index,
		Total:    len(m.steps),
		Phase:    m.phase,
		Err:      m.err,
		Furthest: m.furthest,
	}
	if m.index < len(m.steps) {
		st.StepID = m.steps[m.index].ID
		st.Title = m.steps[m.index].Title
	}
	if m.tracker != nil {
		snap := m.tracker.Snapshot()
		st.Progress = &snap
	}
	return st
}

func (m *Machine[S]) observersLocked() []func(Status) {
	obs := make([]func(Status), 0, len(m.observers))
	for _, fn := range m.observers {
		obs = append(obs, fn)
	}
	return obs
}

func notify(obs []func(Status), st Status) {
	for _, fn := range obs {
		fn(st)
	}
}
