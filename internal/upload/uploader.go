package upload

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/preview"
	"github.com/spf13/afero"
)

// Options configures an Uploader.
type Options struct {
	// AutoConfirm promotes every accepted file immediately.
	AutoConfirm bool

	// OnConfirm receives the file once it is confirmed.
	OnConfirm func(FileRecord)

	// OnRemove is called after the file is removed.
	OnRemove func()

	// Fs is where AcceptPath reads from (default: the OS filesystem).
	Fs afero.Fs
}

// Uploader tracks at most one file. Every preview URL it creates is revoked
// exactly once: on Remove, on replacement by another Accept, or on Close.
type Uploader struct {
	mu        sync.Mutex
	previews  preview.Publisher
	opts      Options
	current   *FileRecord
	confirmed bool
	closed    bool
}

// New creates an Uploader publishing previews through previews.
func New(previews preview.Publisher, opts Options) *Uploader {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Uploader{previews: previews, opts: opts}
}

// Accept validates and stages a file, replacing any previous one.
// A rejected file leaves the current state untouched.
func (u *Uploader) Accept(name, mimeType string, data []byte) (FileRecord, error) {
	if err := Validate(mimeType, int64(len(data))); err != nil {
		return FileRecord{}, err
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return FileRecord{}, ErrClosed
	}
	u.releaseLocked()

	rec := newRecord(name, mimeType, data)
	rec.PreviewURL = u.previews.Create(name, mimeType, data)
	u.current = &rec
	u.confirmed = false

	if !u.opts.AutoConfirm {
		u.mu.Unlock()
		return rec, nil
	}
	u.confirmed = true
	onConfirm := u.opts.OnConfirm
	u.mu.Unlock()

	if onConfirm != nil {
		onConfirm(rec)
	}
	return rec, nil
}

// AcceptPath reads a file from the configured filesystem and stages it.
// The size is checked before reading and the type is sniffed from content.
func (u *Uploader) AcceptPath(path string) (FileRecord, error) {
	info, err := u.opts.Fs.Stat(path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FileRecord{}, fmt.Errorf("%s is a directory", path)
	}

	f, err := u.opts.Fs.Open(path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// Read one byte past the limit so oversized files are still rejected
	// when Stat under-reports.
	data, err := io.ReadAll(io.LimitReader(f, config.MaxUploadBytes+1))
	if err != nil {
		return FileRecord{}, fmt.Errorf("read %s: %w", path, err)
	}
	size := info.Size()
	if int64(len(data)) > size {
		size = int64(len(data))
	}
	mt := mimetype.Detect(data).String()
	if err := Validate(mt, size); err != nil {
		return FileRecord{}, err
	}
	return u.Accept(filepath.Base(path), mt, data)
}

// Confirm promotes the staged file and notifies the parent.
func (u *Uploader) Confirm() (FileRecord, error) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return FileRecord{}, ErrClosed
	}
	if u.current == nil {
		u.mu.Unlock()
		return FileRecord{}, ErrNoFile
	}
	u.confirmed = true
	rec := *u.current
	onConfirm := u.opts.OnConfirm
	u.mu.Unlock()

	if onConfirm != nil {
		onConfirm(rec)
	}
	return rec, nil
}

// Remove revokes the preview and clears the staged file.
func (u *Uploader) Remove() {
	u.mu.Lock()
	had := u.current != nil
	u.releaseLocked()
	onRemove := u.opts.OnRemove
	u.mu.Unlock()

	if had && onRemove != nil {
		onRemove()
	}
}

// Close releases the preview. The uploader cannot be used afterwards.
func (u *Uploader) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.releaseLocked()
	u.closed = true
}

// Current returns the tracked file.
func (u *Uploader) Current() (FileRecord, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.current == nil {
		return FileRecord{}, false
	}
	return *u.current, true
}

// Confirmed reports whether the tracked file has been confirmed.
func (u *Uploader) Confirmed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.current != nil && u.confirmed
}

func (u *Uploader) releaseLocked() {
	if u.current == nil {
		return
	}
	if err := u.previews.Revoke(u.current.PreviewURL); err != nil {
		slog.Warn("revoke preview failed", "url", u.current.PreviewURL, "error", err)
	}
	u.current = nil
	u.confirmed = false
}
