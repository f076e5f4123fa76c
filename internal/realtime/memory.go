package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process store. Handlers run synchronously on the writer's
// goroutine, in subscription order.
type Memory struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
	subs   map[string]map[int]Handler
	nextID int
	closed bool
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]json.RawMessage),
		subs:   make(map[string]map[int]Handler),
	}
}

// Subscribe delivers the current value of path, then every later write.
func (m *Memory) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	path = cleanPath(path)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	id := m.nextID
	m.nextID++
	if m.subs[path] == nil {
		m.subs[path] = make(map[int]Handler)
	}
	m.subs[path][id] = fn
	initial := m.snapshotLocked(path)
	m.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[path], id)
			if len(m.subs[path]) == 0 {
				delete(m.subs, path)
			}
			m.mu.Unlock()
		})
	}

	if ctx.Err() == nil {
		fn(initial)
	}
	return subscriptionFunc(unsub), nil
}

// Set stores value at path and notifies its subscribers. A nil value
// deletes the path.
func (m *Memory) Set(_ context.Context, path string, value any) error {
	path = cleanPath(path)

	var raw json.RawMessage
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		raw = data
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if raw == nil {
		delete(m.values, path)
	} else {
		m.values[path] = raw
	}
	snap := m.snapshotLocked(path)
	handlers := make([]Handler, 0, len(m.subs[path]))
	for i := 0; i < m.nextID; i++ {
		if h, ok := m.subs[path][i]; ok {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(snap)
	}
	return nil
}

// Subscribers reports how many listeners are attached to path.
func (m *Memory) Subscribers(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[cleanPath(path)])
}

// Close drops all listeners.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[string]map[int]Handler)
	return nil
}

func (m *Memory) snapshotLocked(path string) Snapshot {
	raw, ok := m.values[path]
	return Snapshot{Path: path, Data: raw, Exists: ok}
}
