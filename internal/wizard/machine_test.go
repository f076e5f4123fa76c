package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type form struct {
	Name     string
	Upload   string
	Analysis string
	Choice   string
}

type stub struct {
	calls   atomic.Int32
	failFor atomic.Int32 // fail this many calls
	gate    chan struct{}
}

func (s *stub) process(ctx context.Context, f form) (form, error) {
	n := s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if n <= s.failFor.Load() {
		return f, errors.New("analysis failed")
	}
	f.Analysis = "analysed " + f.Upload
	return f, nil
}

func testSteps(s *stub) []Step[form] {
	return []Step[form]{
		{ID: "name", Title: "Your name", Complete: func(f form) bool { return f.Name != "" }},
		{ID: "upload", Title: "Upload", Complete: func(f form) bool { return f.Upload != "" }},
		{ID: "analyse", Title: "Analysing", Kind: KindProcessing, Process: s.process},
		{ID: "review", Title: "Review", Complete: func(f form) bool { return f.Analysis != "" }},
		{ID: "choose", Title: "Choose", Complete: func(f form) bool { return f.Choice != "" }},
	}
}

func newMachine(t *testing.T, s *stub) *Machine[form] {
	t.Helper()
	m, err := New(testSteps(s), form{})
	require.NoError(t, err)
	return m
}

func TestNew_Validates(t *testing.T) {
	_, err := New[form](nil, form{})
	assert.Error(t, err)
	_, err = New([]Step[form]{{ID: "p", Kind: KindProcessing}}, form{})
	assert.Error(t, err)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		phase Phase
		event Event
		legal bool
	}{
		{PhaseEditing, EventNext, true},
		{PhaseEditing, EventPrev, true},
		{PhaseEditing, EventJump, true},
		{PhaseEditing, EventRetry, false},
		{PhaseEditing, EventSucceeded, false},
		{PhaseProcessing, EventNext, false},
		{PhaseProcessing, EventPrev, false},
		{PhaseProcessing, EventJump, false},
		{PhaseProcessing, EventSucceeded, true},
		{PhaseProcessing, EventFailed, true},
		{PhaseFailed, EventRetry, true},
		{PhaseFailed, EventNext, false},
		{PhaseFailed, EventPrev, true},
		{PhaseDone, EventNext, false},
		{PhaseDone, EventPrev, false},
	}
	for _, tt := range tests {
		t.Run(tt.phase.String()+"/"+tt.event.String(), func(t *testing.T) {
			_, ok := transitions[tt.phase][tt.event]
			assert.Equal(t, tt.legal, ok)
		})
	}
}

func TestNext_GatedByPredicate(t *testing.T) {
	ctx := context.Background()
	m := newMachine(t, &stub{})

	assert.False(t, m.CanNext())
	err := m.Next(ctx)
	assert.ErrorIs(t, err, ErrStepIncomplete)
	assert.Equal(t, 0, m.Status().Index, "Next is a no-op while incomplete")

	require.NoError(t, m.Edit(func(f *form) { f.Name = "Ada" }))
	assert.True(t, m.CanNext())
	require.NoError(t, m.Next(ctx))
	assert.Equal(t, "upload", m.Status().StepID)
}

func TestPrev_UnavailableAtFirstStep(t *testing.T) {
	m := newMachine(t, &stub{})
	assert.False(t, m.CanPrev())
	assert.ErrorIs(t, m.Prev(context.Background()), ErrAtFirstStep)
	assert.Equal(t, 0, m.Status().Index)
}

func TestProcessing_BlocksNavigationThenAdvances(t *testing.T) {
	ctx := context.Background()
	s := &stub{gate: make(chan struct{})}
	m := newMachine(t, s)

	var mu sync.Mutex
	var phases []Phase
	defer m.Subscribe(func(st Status) {
		mu.Lock()
		phases = append(phases, st.Phase)
		mu.Unlock()
	})()

	require.NoError(t, m.Edit(func(f *form) { f.Name = "Ada" }))
	require.NoError(t, m.Next(ctx))
	require.NoError(t, m.Edit(func(f *form) { f.Upload = "plan.png" }))
	require.NoError(t, m.Next(ctx))

	st := m.Status()
	assert.Equal(t, "analyse", st.StepID)
	assert.Equal(t, PhaseProcessing, st.Phase)
	assert.ErrorIs(t, m.Next(ctx), ErrIllegalTransition)
	assert.ErrorIs(t, m.Prev(ctx), ErrIllegalTransition)
	assert.ErrorIs(t, m.Jump(ctx, 0), ErrIllegalTransition)
	assert.ErrorIs(t, m.Edit(func(f *form) { f.Name = "x" }), ErrBusy)

	close(s.gate)
	m.Wait()

	st = m.Status()
	assert.Equal(t, "review", st.StepID)
	assert.Equal(t, PhaseEditing, st.Phase)
	assert.Equal(t, "analysed plan.png", m.State().Analysis)

	mu.Lock()
	assert.Contains(t, phases, PhaseProcessing)
	mu.Unlock()
}

func TestFailure_ManualRetryRerunsSameRequest(t *testing.T) {
	ctx := context.Background()
	s := &stub{}
	s.failFor.Store(1)
	m := newMachine(t, s)

	require.NoError(t, m.Edit(func(f *form) { f.Name = "Ada"; f.Upload = "plan.png" }))
	require.NoError(t, m.Next(ctx))
	require.NoError(t, m.Next(ctx))
	m.Wait()

	st := m.Status()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.EqualError(t, st.Err, "analysis failed")
	assert.Equal(t, "analyse", st.StepID, "no automatic retry")
	assert.Equal(t, int32(1), s.calls.Load())
	assert.ErrorIs(t, m.Next(ctx), ErrIllegalTransition)

	require.NoError(t, m.Retry(ctx))
	m.Wait()
	assert.Equal(t, int32(2), s.calls.Load())
	assert.Equal(t, "review", m.Status().StepID)
	assert.ErrorIs(t, m.Retry(ctx), ErrIllegalTransition)
}

func TestFailure_PrevGoesBackToInput(t *testing.T) {
	ctx := context.Background()
	s := &stub{}
	s.failFor.Store(5)
	m := newMachine(t, s)

	require.NoError(t, m.Edit(func(f *form) { f.Name = "Ada"; f.Upload = "plan.png" }))
	require.NoError(t, m.Next(ctx))
	require.NoError(t, m.Next(ctx))
	m.Wait()
	require.Equal(t, PhaseFailed, m.Status().Phase)

	require.NoError(t, m.Prev(ctx))
	st := m.Status()
	assert.Equal(t, "upload", st.StepID)
	assert.Equal(t, PhaseEditing, st.Phase)
	assert.NoError(t, st.Err)
}

func TestJump(t *testing.T) {
	ctx := context.Background()
	s := &stub{}
	m := newMachine(t, s)

	assert.ErrorIs(t, m.Jump(ctx, 1), ErrJumpBlocked, "name is incomplete")
	assert.ErrorIs(t, m.Jump(ctx, 2), ErrJumpBlocked, "processing steps are not jump targets")
	assert.ErrorIs(t, m.Jump(ctx, 9), ErrJumpBlocked)
	assert.ErrorIs(t, m.Jump(ctx, 0), ErrJumpBlocked)

	require.NoError(t, m.Edit(func(f *form) { f.Name = "Ada"; f.Upload = "plan.png" }))
	assert.False(t, m.CanJump(3), "analysis has not run")
	require.NoError(t, m.Jump(ctx, 1))
	require.NoError(t, m.Next(ctx))
	m.Wait()
	require.Equal(t, "review", m.Status().StepID)

	require.NoError(t, m.Jump(ctx, 0), "back to a visited step")
	assert.Equal(t, 3, m.Status().Furthest)
	assert.False(t, m.CanJump(3), "going back invalidates the analysis")
	require.NoError(t, m.Jump(ctx, 1))
	assert.Equal(t, "upload", m.Status().StepID)
}

func TestDone(t *testing.T) {
	ctx := context.Background()
	m, err := New([]Step[form]{
		{ID: "only", Complete: func(f form) bool { return f.Choice != "" }},
	}, form{Choice: "x"})
	require.NoError(t, err)

	require.NoError(t, m.Next(ctx))
	assert.Equal(t, PhaseDone, m.Status().Phase)
	assert.ErrorIs(t, m.Next(ctx), ErrIllegalTransition)
	assert.ErrorIs(t, m.Prev(ctx), ErrIllegalTransition)
	assert.ErrorIs(t, m.Edit(func(*form) {}), ErrBusy)
}

func TestStart_FirstProcessingStep(t *testing.T) {
	s := &stub{}
	m, err := New([]Step[form]{
		{ID: "analyse", Kind: KindProcessing, Process: s.process},
		{ID: "review"},
	}, form{Upload: "room.jpg"})
	require.NoError(t, err)

	assert.Equal(t, PhaseEditing, m.Status().Phase, "nothing runs before Start")
	require.NoError(t, m.Start(context.Background()))
	m.Wait()
	require.NoError(t, m.Start(context.Background()), "second Start is a no-op")
	assert.Equal(t, int32(1), s.calls.Load())
	assert.Equal(t, "review", m.Status().StepID)
}
