package realtime

import (
	"context"
	"sync"
)

// Scope owns a set of subscriptions. Everything acquired through it is
// released by Close or when its context ends, and handlers never run after
// that point.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	store  Store

	mu     sync.Mutex
	subs   []Subscription
	closed bool
	wg     sync.WaitGroup
}

// NewScope opens a scope bound to ctx.
func NewScope(ctx context.Context, store Store) *Scope {
	ctx, cancel := context.WithCancel(ctx)
	s := &Scope{ctx: ctx, cancel: cancel, store: store}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		s.release()
	}()
	return s
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context { return s.ctx }

// Subscribe listens on path for the lifetime of the scope.
func (s *Scope) Subscribe(path string, fn Handler) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	guarded := func(snap Snapshot) {
		if s.ctx.Err() != nil {
			return
		}
		fn(snap)
	}
	sub, err := s.store.Subscribe(s.ctx, path, guarded)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.Unsubscribe()
		return ErrClosed
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Len is the number of live subscriptions.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close releases every subscription and waits for the scope to wind down.
func (s *Scope) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scope) release() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.closed = true
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
