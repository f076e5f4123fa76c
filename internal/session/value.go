// Package session holds the process-wide client state: the signed-in user and
// the saved-recommendations flag. Holders are created once and injected into
// the components that read or write them.
package session

import "sync"

// Value is a mutex-guarded holder that notifies subscribers on every write.
type Value[T any] struct {
	mu     sync.RWMutex
	v      T
	nextID int
	subs   map[int]func(T)
}

// NewValue creates a holder with an initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.v
}

// Set replaces the value and notifies subscribers.
func (v *Value[T]) Set(next T) {
	v.Update(func(T) T { return next })
}

// Update applies fn to the current value under the lock, then notifies
// subscribers outside of it.
func (v *Value[T]) Update(fn func(T) T) {
	v.mu.Lock()
	v.v = fn(v.v)
	cur := v.v
	subs := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(cur)
	}
}

// Subscribe registers fn and returns the function that removes it.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}
