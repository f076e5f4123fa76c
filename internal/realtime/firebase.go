package realtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// reconnectDelay is the pause before a dropped stream is reopened.
var reconnectDelay = 2 * time.Second

// Firebase streams paths from a Firebase Realtime Database through its REST
// streaming endpoint (server-sent events).
type Firebase struct {
	baseURL string
	token   string
	client  *http.Client

	mu      sync.Mutex
	closed  bool
	nextID  int
	cancels map[int]context.CancelFunc
	wg      sync.WaitGroup
}

// NewFirebase creates a driver for the database at baseURL
// (e.g. "https://planperfect-default-rtdb.firebaseio.com"). token is passed as
// the auth query parameter when set.
func NewFirebase(baseURL, token string, client *http.Client) *Firebase {
	if client == nil {
		// Streams stay open indefinitely; no overall timeout.
		client = &http.Client{}
	}
	return &Firebase{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		cancels: make(map[int]context.CancelFunc),
	}
}

// Subscribe opens a stream on path. The first event carries the current value.
func (f *Firebase) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	path = cleanPath(path)
	ctx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	id := f.nextID
	f.nextID++
	f.cancels[id] = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer f.wg.Done()
		defer close(done)
		f.stream(ctx, path, fn)
	}()

	var once sync.Once
	return subscriptionFunc(func() {
		once.Do(func() {
			cancel()
			f.mu.Lock()
			delete(f.cancels, id)
			f.mu.Unlock()
			<-done
		})
	}), nil
}

// streams reports how many subscriptions are live.
func (f *Firebase) streams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancels)
}

// Close ends every open stream.
func (f *Firebase) Close() error {
	f.mu.Lock()
	f.closed = true
	cancels := make([]context.CancelFunc, 0, len(f.cancels))
	for _, c := range f.cancels {
		cancels = append(cancels, c)
	}
	clear(f.cancels)
	f.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	f.wg.Wait()
	return nil
}

func (f *Firebase) endpoint(path string) string {
	u := f.baseURL + "/" + path + ".json"
	if f.token != "" {
		u += "?auth=" + url.QueryEscape(f.token)
	}
	return u
}

func (f *Firebase) stream(ctx context.Context, path string, fn Handler) {
	tree := &valueTree{}
	for {
		err := f.streamOnce(ctx, path, tree, fn)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errStreamCancelled) {
			slog.Warn("realtime stream cancelled by server", "path", path)
			return
		}
		slog.Debug("realtime stream dropped, reconnecting", "path", path, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

var errStreamCancelled = errors.New("stream cancelled by server")

func (f *Firebase) streamOnce(ctx context.Context, path string, tree *valueTree, fn Handler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stream %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	return readEvents(resp.Body, func(event string, data []byte) error {
		switch event {
		case "put", "patch":
			var msg struct {
				Path string          `json:"path"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				return fmt.Errorf("decode %s event: %w", event, err)
			}
			if err := tree.apply(event, msg.Path, msg.Data); err != nil {
				return err
			}
			if ctx.Err() == nil {
				fn(tree.snapshot(path))
			}
		case "keep-alive":
		case "cancel", "auth_revoked":
			return errStreamCancelled
		}
		return nil
	})
}

// readEvents parses a text/event-stream body, calling fn per event.
func readEvents(r io.Reader, fn func(event string, data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var event string
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event != "" || data.Len() > 0 {
				if err := fn(event, data.Bytes()); err != nil {
					return err
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

// valueTree mirrors the JSON value at a stream root so partial puts and
// patches can be folded into whole snapshots.
type valueTree struct {
	root any
}

func (t *valueTree) apply(event, path string, data json.RawMessage) error {
	var v any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
	}
	segs := splitPath(path)

	if event == "patch" {
		patch, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("patch at %q is not an object", path)
		}
		for k, child := range patch {
			t.root = setAt(t.root, append(append([]string(nil), segs...), splitPath(k)...), child)
		}
		return nil
	}
	t.root = setAt(t.root, segs, v)
	return nil
}

func (t *valueTree) snapshot(path string) Snapshot {
	if t.root == nil {
		return Snapshot{Path: path}
	}
	data, err := json.Marshal(t.root)
	if err != nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Data: data, Exists: true}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// setAt returns node with the value at segs replaced. A nil value removes it.
func setAt(node any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	child := setAt(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
