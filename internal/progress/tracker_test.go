package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	completionDelay = 10 * time.Millisecond
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.states); n > 0 && r.states[n-1] == s.State {
		return
	}
	r.states = append(r.states, s.State)
}

func (r *recorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNoStages)
	_, err = New([]string{"a"}, nil)
	assert.ErrorIs(t, err, ErrNoRequest)
}

func TestTracker_SuccessPath(t *testing.T) {
	release := make(chan struct{})
	completed := make(chan struct{})
	tr, err := New(
		[]string{"Reading plan", "Detecting rooms", "Measuring"},
		func(ctx context.Context) error {
			<-release
			return nil
		},
		WithCadence(5*time.Millisecond),
		OnComplete(func() { close(completed) }),
	)
	require.NoError(t, err)

	rec := &recorder{}
	defer tr.Subscribe(rec.observe)()

	assert.Equal(t, StateIdle, tr.Snapshot().State)
	require.NoError(t, tr.Start(context.Background()))
	assert.ErrorIs(t, tr.Start(context.Background()), ErrInFlight)

	require.Eventually(t, func() bool {
		s := tr.Snapshot()
		return s.State == StateRunning && s.Stage == 2
	}, time.Second, time.Millisecond, "stages advance and hold on the last one")

	close(release)
	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("completion callback not called")
	}
	tr.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, "Measuring", snap.Label)
	assert.Equal(t, []State{StatePreparing, StateRunning, StateCompleted}, rec.get())

	assert.ErrorIs(t, tr.Start(context.Background()), ErrNotIdle)
	assert.ErrorIs(t, tr.Retry(context.Background()), ErrNotFailed)
}

func TestTracker_CompletionWaitsForDelay(t *testing.T) {
	old := completionDelay
	completionDelay = 50 * time.Millisecond
	defer func() { completionDelay = old }()

	var calledAt atomic.Int64
	tr, err := New([]string{"Analysing"}, func(context.Context) error { return nil },
		OnComplete(func() { calledAt.Store(time.Now().UnixNano()) }))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, tr.Start(context.Background()))
	tr.Wait()

	require.NotZero(t, calledAt.Load())
	assert.GreaterOrEqual(t, time.Duration(calledAt.Load()-start.UnixNano()), 50*time.Millisecond)
}

func TestTracker_FailureAndRetry(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("backend down")
	done := make(chan struct{}, 1)

	tr, err := New([]string{"Analysing"}, func(context.Context) error {
		if calls.Add(1) == 1 {
			return boom
		}
		return nil
	}, OnComplete(func() { done <- struct{}{} }))
	require.NoError(t, err)

	require.NoError(t, tr.Start(context.Background()))
	tr.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Empty(t, done, "no completion on failure")

	rec := &recorder{}
	defer tr.Subscribe(rec.observe)()

	require.NoError(t, tr.Retry(context.Background()))
	tr.Wait()

	assert.Equal(t, int32(2), calls.Load(), "retry re-runs the same request")
	assert.Equal(t, StateCompleted, tr.Snapshot().State)
	assert.Equal(t, StatePreparing, rec.get()[0], "retry restarts from preparing")
	assert.Len(t, done, 1)
}

func TestTracker_AutoStart(t *testing.T) {
	var calls atomic.Int32
	tr, err := New([]string{"Analysing"}, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	assert.False(t, tr.AutoStart(context.Background(), false))
	assert.Equal(t, StateIdle, tr.Snapshot().State)

	assert.True(t, tr.AutoStart(context.Background(), true))
	tr.Wait()
	assert.False(t, tr.AutoStart(context.Background(), true), "only starts once")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTracker_CancelSkipsCompletion(t *testing.T) {
	old := completionDelay
	completionDelay = time.Hour
	defer func() { completionDelay = old }()

	called := false
	tr, err := New([]string{"Analysing"}, func(context.Context) error { return nil },
		OnComplete(func() { called = true }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tr.Start(ctx))
	require.Eventually(t, func() bool { return tr.Snapshot().State == StateCompleted },
		time.Second, time.Millisecond)
	cancel()
	tr.Wait()
	assert.False(t, called)
}
