// Package document runs the design document page: find the user's
// onboarding flow, generate the matching PDF and offer it for preview,
// download and cloud save.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/planperfect/planperfect/internal/notify"
	"github.com/planperfect/planperfect/internal/preview"
	"github.com/planperfect/planperfect/internal/session"
	"github.com/spf13/afero"
)

// Onboarding flow tags recorded by the backend.
const (
	FlowNewHomeowner      = "new_homeowner"
	FlowExistingHomeowner = "existing_homeowner"
)

// Endpoints maps a flow tag to its generation endpoint.
var Endpoints = map[string]string{
	FlowNewHomeowner:      "/documents/new-homeowner",
	FlowExistingHomeowner: "/documents/existing-homeowner",
}

var (
	ErrUnknownFlow = errors.New("no design document for this onboarding flow")
	ErrNoDocument  = errors.New("no document generated yet")
	ErrBusy        = errors.New("document generation already running")
	ErrClosed      = errors.New("document page closed")
)

// Backend is the subset of the API client the page uses.
type Backend interface {
	UserFlow(ctx context.Context, uid string) (string, error)
	GenerateDocument(ctx context.Context, uid, endpoint string) ([]byte, error)
	SaveDocument(ctx context.Context, uid, flow string, pdf []byte) (string, error)
	SendConfirmationEmail(ctx context.Context, uid string) error
}

// UserSource yields the signed-in user.
type UserSource interface {
	RequireUser() (session.User, error)
}

// Options configures a Flow.
type Options struct {
	Backend  Backend
	Users    UserSource
	Notifier notify.Notifier
	Previews preview.Publisher
	Fs       afero.Fs
}

// Document is the generated PDF as the page shows it.
type Document struct {
	Flow       string
	PreviewURL string
	Bytes      int
	Size       string
}

// Flow is one design document page.
type Flow struct {
	backend  Backend
	users    UserSource
	notifier notify.Notifier
	previews preview.Publisher
	fs       afero.Fs

	mu         sync.Mutex
	flow       string
	pdf        []byte
	previewURL string
	generating bool
	closed     bool
}

// New creates a Flow.
func New(opts Options) *Flow {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Flow{
		backend:  opts.Backend,
		users:    opts.Users,
		notifier: opts.Notifier,
		previews: opts.Previews,
		fs:       opts.Fs,
	}
}

// Run looks up the onboarding flow and generates its document.
func (f *Flow) Run(ctx context.Context) (Document, error) {
	user, err := f.users.RequireUser()
	if err != nil {
		return Document{}, err
	}
	tag, err := f.backend.UserFlow(ctx, user.ID)
	if err != nil {
		f.report(err, "Could not find your onboarding details.")
		return Document{}, fmt.Errorf("user flow: %w", err)
	}
	if _, ok := Endpoints[tag]; !ok {
		f.report(fmt.Errorf("%w: %q", ErrUnknownFlow, tag), "Finish onboarding to get a design document.")
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownFlow, tag)
	}

	f.mu.Lock()
	f.flow = tag
	f.mu.Unlock()
	return f.Generate(ctx)
}

// Generate produces the PDF for the known flow and publishes a preview.
// The previous preview is revoked once the new one exists.
func (f *Flow) Generate(ctx context.Context) (Document, error) {
	user, err := f.users.RequireUser()
	if err != nil {
		return Document{}, err
	}

	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return Document{}, ErrClosed
	case f.generating:
		f.mu.Unlock()
		return Document{}, ErrBusy
	case f.flow == "":
		f.mu.Unlock()
		return Document{}, ErrUnknownFlow
	}
	f.generating = true
	tag := f.flow
	f.mu.Unlock()

	pdf, err := f.backend.GenerateDocument(ctx, user.ID, Endpoints[tag])

	f.mu.Lock()
	defer f.mu.Unlock()
	f.generating = false
	if err != nil {
		f.report(err, "Could not generate your design document.")
		return Document{}, fmt.Errorf("generate %s: %w", tag, err)
	}
	if f.closed {
		return Document{}, ErrClosed
	}

	url := f.previews.Create(tag+".pdf", "application/pdf", pdf)
	f.revokeLocked()
	f.pdf = pdf
	f.previewURL = url
	slog.Debug("design document generated", "flow", tag, "bytes", len(pdf))
	return f.documentLocked(), nil
}

// Regenerate asks the backend for a fresh document.
func (f *Flow) Regenerate(ctx context.Context) (Document, error) {
	return f.Generate(ctx)
}

// Current returns the document on display.
func (f *Flow) Current() (Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pdf == nil {
		return Document{}, false
	}
	return f.documentLocked(), true
}

// Download writes the PDF to path, then asks the backend to send the
// confirmation email. The email is best effort: its failure is logged and
// never fails the download.
func (f *Flow) Download(ctx context.Context, path string) error {
	f.mu.Lock()
	pdf := f.pdf
	f.mu.Unlock()
	if pdf == nil {
		return ErrNoDocument
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := f.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(f.fs, path, pdf, os.FileMode(0644)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if user, err := f.users.RequireUser(); err == nil {
		if err := f.backend.SendConfirmationEmail(ctx, user.ID); err != nil {
			slog.Warn("confirmation email failed", "error", err)
		}
	}
	return nil
}

// SaveToCloud re-uploads the PDF and returns its storage URL.
func (f *Flow) SaveToCloud(ctx context.Context) (string, error) {
	user, err := f.users.RequireUser()
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	pdf, tag := f.pdf, f.flow
	f.mu.Unlock()
	if pdf == nil {
		return "", ErrNoDocument
	}

	url, err := f.backend.SaveDocument(ctx, user.ID, tag, pdf)
	if err != nil {
		f.report(err, "Could not save your document.")
		return "", fmt.Errorf("save document: %w", err)
	}
	if f.notifier != nil {
		f.notifier.Success("Design document saved.")
	}
	return url, nil
}

// Close revokes the preview. Further generation fails with ErrClosed.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeLocked()
	f.closed = true
}

func (f *Flow) revokeLocked() {
	if f.previewURL == "" {
		return
	}
	if err := f.previews.Revoke(f.previewURL); err != nil {
		slog.Warn("revoke document preview failed", "url", f.previewURL, "error", err)
	}
	f.previewURL = ""
}

func (f *Flow) documentLocked() Document {
	return Document{
		Flow:       f.flow,
		PreviewURL: f.previewURL,
		Bytes:      len(f.pdf),
		Size:       humanize.IBytes(uint64(len(f.pdf))),
	}
}

func (f *Flow) report(err error, fallback string) {
	if f.notifier != nil {
		f.notifier.Report(err, fallback)
	}
}
