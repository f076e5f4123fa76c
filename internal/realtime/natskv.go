package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the key-value bucket used when none is configured.
const DefaultBucket = "planperfect"

// NATS stores each channel as a key in a JetStream key-value bucket and
// watches keys for updates. Paths map to keys by replacing "/" with ".".
type NATS struct {
	nc      *nats.Conn
	kv      jetstream.KeyValue
	drained chan struct{}

	mu      sync.Mutex
	closed  bool
	nextID  int
	cancels map[int]context.CancelFunc
	wg      sync.WaitGroup
}

// NewNATS connects to url and opens (or creates) bucket.
func NewNATS(ctx context.Context, url, bucket string) (*NATS, error) {
	drained := make(chan struct{})
	nc, err := nats.Connect(url,
		nats.Name("planperfect"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.ClosedHandler(func(*nats.Conn) { close(drained) }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "PlanPerfect agent status channels",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucket, err)
	}

	return &NATS{nc: nc, kv: kv, drained: drained, cancels: make(map[int]context.CancelFunc)}, nil
}

// Subscribe watches the key for path. The watcher replays the current value
// first, so the handler sees it before any update.
func (n *NATS) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	path = cleanPath(path)
	ctx, cancel := context.WithCancel(ctx)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	id := n.nextID
	n.nextID++
	n.cancels[id] = cancel
	n.wg.Add(1)
	n.mu.Unlock()

	release := func() {
		cancel()
		n.mu.Lock()
		delete(n.cancels, id)
		n.mu.Unlock()
	}

	w, err := n.kv.Watch(ctx, keyFor(path))
	if err != nil {
		release()
		n.wg.Done()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer n.wg.Done()
		defer close(done)
		defer func() { _ = w.Stop() }()

		sawInitial := false
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-w.Updates():
				if !ok {
					return
				}
				if entry == nil {
					// End of the replay. An empty key still gets one delivery.
					if !sawInitial {
						sawInitial = true
						fn(Snapshot{Path: path})
					}
					continue
				}
				sawInitial = true
				if ctx.Err() == nil {
					fn(entrySnapshot(path, entry))
				}
			}
		}
	}()

	var once sync.Once
	return subscriptionFunc(func() {
		once.Do(func() {
			release()
			<-done
		})
	}), nil
}

// watching reports how many subscriptions are live.
func (n *NATS) watching() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.cancels)
}

// Set writes value at path. A nil value deletes the key.
func (n *NATS) Set(ctx context.Context, path string, value any) error {
	key := keyFor(cleanPath(path))
	if value == nil {
		if err := n.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := n.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// drainTimeout bounds how long Close waits for the connection to drain.
const drainTimeout = 5 * time.Second

// Close stops every watcher and drains the connection. It returns once the
// connection is closed.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	cancels := make([]context.CancelFunc, 0, len(n.cancels))
	for _, c := range n.cancels {
		cancels = append(cancels, c)
	}
	clear(n.cancels)
	n.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	n.wg.Wait()
	if err := n.nc.Drain(); err != nil {
		slog.Debug("nats drain failed", "error", err)
		n.nc.Close()
	}
	select {
	case <-n.drained:
	case <-time.After(drainTimeout):
		n.nc.Close()
		<-n.drained
	}
	return nil
}

func keyFor(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}

func entrySnapshot(path string, e jetstream.KeyValueEntry) Snapshot {
	switch e.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Data: json.RawMessage(e.Value()), Exists: true}
}
