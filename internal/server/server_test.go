package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/planperfect/planperfect/internal/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlePreview_ServesLiveBlob(t *testing.T) {
	reg := preview.NewRegistry("")
	url := reg.Create("plan.png", "image/png", []byte("png-data"))
	id := url[strings.LastIndex(url, "/")+1:]

	srv := New("127.0.0.1:0", reg)
	req := httptest.NewRequest(http.MethodGet, "/preview/"+id, nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-data", rec.Body.String())
}

func TestHandlePreview_RevokedIsGone(t *testing.T) {
	reg := preview.NewRegistry("")
	url := reg.Create("plan.png", "image/png", []byte("png-data"))
	require.NoError(t, reg.Revoke(url))
	id := url[strings.LastIndex(url, "/")+1:]

	srv := New("127.0.0.1:0", reg)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview/"+id, nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := New("127.0.0.1:0", preview.NewRegistry(""), "http://localhost:5173")

	req := httptest.NewRequest(http.MethodOptions, "/preview/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/preview/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_ListenStartShutdown(t *testing.T) {
	reg := preview.NewRegistry("")
	srv := New("127.0.0.1:0", reg)

	base, err := srv.Listen()
	require.NoError(t, err)
	reg.SetBaseURL(base)

	var wg sync.WaitGroup
	errs := make(chan error, 1)
	srv.Start(&wg, errs)

	url := reg.Create("doc.pdf", "application/pdf", []byte("%PDF"))
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "%PDF", string(body))

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, 1, health.Live)

	require.NoError(t, srv.Shutdown(context.Background()))
	wg.Wait()
	assert.Empty(t, errs)
}
