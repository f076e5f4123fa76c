package document

import (
	"context"
	"errors"
	"testing"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/notify"
	"github.com/planperfect/planperfect/internal/preview"
	"github.com/planperfect/planperfect/internal/session"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct{ err error }

func (f fakeUsers) RequireUser() (session.User, error) {
	if f.err != nil {
		return session.User{}, f.err
	}
	return session.User{ID: "u1"}, nil
}

type fakeBackend struct {
	flow      string
	flowErr   error
	genErr    error
	emailErr  error
	endpoints []string
	emails    int
	saved     []byte
	gen       int
}

func (f *fakeBackend) UserFlow(context.Context, string) (string, error) {
	return f.flow, f.flowErr
}

func (f *fakeBackend) GenerateDocument(_ context.Context, _, endpoint string) ([]byte, error) {
	f.endpoints = append(f.endpoints, endpoint)
	if f.genErr != nil {
		return nil, f.genErr
	}
	f.gen++
	return []byte("%PDF-1.7 version " + string(rune('0'+f.gen))), nil
}

func (f *fakeBackend) SaveDocument(_ context.Context, _, _ string, pdf []byte) (string, error) {
	f.saved = pdf
	return "https://storage.example/doc.pdf", nil
}

func (f *fakeBackend) SendConfirmationEmail(context.Context, string) error {
	f.emails++
	return f.emailErr
}

func setup(be *fakeBackend) (*Flow, *preview.Registry, *notify.Recorder, afero.Fs) {
	reg := preview.NewRegistry("http://127.0.0.1:9")
	toasts := notify.NewRecorder()
	fs := afero.NewMemMapFs()
	f := New(Options{
		Backend:  be,
		Users:    fakeUsers{},
		Notifier: notify.New(toasts),
		Previews: reg,
		Fs:       fs,
	})
	return f, reg, toasts, fs
}

func TestRun_PicksEndpointByFlow(t *testing.T) {
	tests := []struct {
		flow     string
		endpoint string
	}{
		{FlowNewHomeowner, "/documents/new-homeowner"},
		{FlowExistingHomeowner, "/documents/existing-homeowner"},
	}
	for _, tt := range tests {
		t.Run(tt.flow, func(t *testing.T) {
			be := &fakeBackend{flow: tt.flow}
			f, reg, _, _ := setup(be)
			defer f.Close()

			doc, err := f.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{tt.endpoint}, be.endpoints)
			assert.Equal(t, tt.flow, doc.Flow)
			assert.Contains(t, doc.PreviewURL, "/preview/")
			assert.Equal(t, 1, reg.Live())
		})
	}
}

func TestRun_UnknownFlow(t *testing.T) {
	f, reg, toasts, _ := setup(&fakeBackend{flow: ""})
	_, err := f.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnknownFlow)
	assert.Zero(t, reg.Live())
	assert.Equal(t, []notify.Level{notify.LevelError}, toasts.Levels())
}

func TestRegenerate_RevokesPreviousPreview(t *testing.T) {
	be := &fakeBackend{flow: FlowNewHomeowner}
	f, reg, _, _ := setup(be)

	first, err := f.Run(context.Background())
	require.NoError(t, err)
	second, err := f.Regenerate(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.PreviewURL, second.PreviewURL)
	assert.Equal(t, 1, reg.Live())

	be.genErr = &api.Error{Kind: api.KindUser, Status: 400, Message: "Complete your preferences first"}
	_, err = f.Regenerate(context.Background())
	require.Error(t, err)
	cur, ok := f.Current()
	require.True(t, ok)
	assert.Equal(t, second.PreviewURL, cur.PreviewURL, "failed regeneration keeps the document")

	f.Close()
	assert.Zero(t, reg.Live())
	assert.Equal(t, preview.Stats{Created: 2, Revoked: 2}, reg.Stats())
	_, err = f.Generate(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDownload_EmailFailureDoesNotBlock(t *testing.T) {
	be := &fakeBackend{flow: FlowExistingHomeowner, emailErr: errors.New("smtp down")}
	f, _, _, fs := setup(be)
	defer f.Close()

	assert.ErrorIs(t, f.Download(context.Background(), "/out/plan.pdf"), ErrNoDocument)

	_, err := f.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.Download(context.Background(), "/out/plan.pdf"))

	data, err := afero.ReadFile(fs, "/out/plan.pdf")
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF")
	assert.Equal(t, 1, be.emails)
}

func TestSaveToCloud(t *testing.T) {
	be := &fakeBackend{flow: FlowNewHomeowner}
	f, _, toasts, _ := setup(be)
	defer f.Close()

	_, err := f.SaveToCloud(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)

	doc, err := f.Run(context.Background())
	require.NoError(t, err)
	url, err := f.SaveToCloud(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/doc.pdf", url)
	assert.Len(t, be.saved, doc.Bytes)
	assert.Equal(t, []notify.Level{notify.LevelSuccess}, toasts.Levels())
}
