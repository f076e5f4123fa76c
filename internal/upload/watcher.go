package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay lets a file finish being written before it is read.
var settleDelay = 250 * time.Millisecond

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// WatchHandlers receive the outcome of every file dropped into the folder.
type WatchHandlers struct {
	OnStaged   func(FileRecord)
	OnRejected func(path string, err error)
}

// Watch stages every image written into dir until ctx is done. Each new file
// replaces the previous one, so the single-file contract holds.
func Watch(ctx context.Context, dir string, up *Uploader, h WatchHandlers) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	d := newDebouncer(settleDelay)
	defer d.close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !imageExts[strings.ToLower(filepath.Ext(ev.Name))] {
				continue
			}
			d.touch(ev.Name)

		case r := <-d.ready:
			path, ok := d.take(r)
			if !ok {
				continue
			}
			rec, err := up.AcceptPath(path)
			if err != nil {
				slog.Debug("dropped file rejected", "path", path, "error", err)
				if h.OnRejected != nil {
					h.OnRejected(path, err)
				}
				continue
			}
			if h.OnStaged != nil {
				h.OnStaged(rec)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "dir", dir, "error", err)
		}
	}
}

type settled struct {
	path string
	gen  int
}

type pendingFile struct {
	timer *time.Timer
	gen   int
}

// debouncer reports a path once no write has touched it for delay. Every
// touch starts a new generation, so a timer that already fired is ignored
// when a later write arrives before its report is handled.
type debouncer struct {
	delay   time.Duration
	gen     int
	pending map[string]pendingFile
	ready   chan settled
	stop    chan struct{}
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[string]pendingFile),
		ready:   make(chan settled, 16),
		stop:    make(chan struct{}),
	}
}

func (d *debouncer) touch(path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.gen++
	r := settled{path: path, gen: d.gen}
	t := time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- r:
		case <-d.stop:
		}
	})
	d.pending[path] = pendingFile{timer: t, gen: r.gen}
}

// take reports whether r is the latest generation for its path and forgets it.
func (d *debouncer) take(r settled) (string, bool) {
	p, ok := d.pending[r.path]
	if !ok || p.gen != r.gen {
		return "", false
	}
	delete(d.pending, r.path)
	return r.path, true
}

func (d *debouncer) close() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
	close(d.stop)
}
