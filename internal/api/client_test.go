package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClient_JSONBody_SetsHeaders(t *testing.T) {
	var gotCT, gotKey, gotUser string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		gotKey = r.Header.Get(HeaderAPIKey)
		gotUser = r.Header.Get(HeaderUserID)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"response":"hi there"}`))
	})

	reply, err := c.AgentQuery(context.Background(), "u1", "Hello")
	require.NoError(t, err)

	assert.Equal(t, "hi there", reply)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "Hello", gotBody["query"])
}

func TestClient_FormBody_UsesMultipartBoundary(t *testing.T) {
	var gotCT, gotFile, gotName string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile = string(data)
		gotName = hdr.Filename
		_, _ = w.Write([]byte(`{"detections":[{"class":"sofa","confidence":0.91,"url":"http://x/sofa.png"}]}`))
	})

	dets, err := c.DetectFurniture(context.Background(), Image{Name: "room.png", MIME: "image/png", Data: []byte("png-bytes")})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotCT, "multipart/form-data; boundary="), gotCT)
	assert.Equal(t, "png-bytes", gotFile)
	assert.Equal(t, "room.png", gotName)
	require.Len(t, dets, 1)
	assert.Equal(t, "sofa", dets[0].Class)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		kind     Kind
		message  string
		userSafe bool
	}{
		{"user error in error field", 400, `{"error":"UERROR: Image is too blurry"}`, KindUser, "Image is too blurry", true},
		{"user error in detail field", 422, `{"detail":"UERROR: Unsupported floor plan"}`, KindUser, "Unsupported floor plan", true},
		{"internal prefix", 500, `{"error":"ERROR: model crashed"}`, KindInternal, "model crashed", false},
		{"unprefixed", 500, `{"detail":"boom"}`, KindInternal, "boom", false},
		{"200 with error field", 200, `{"error":"UERROR: No rooms found"}`, KindUser, "No rooms found", true},
		{"plain text body", 502, `bad gateway`, KindInternal, "bad gateway", false},
		{"empty body", 503, ``, KindInternal, "Service Unavailable", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.Get(context.Background(), "/anything", nil)
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.message, apiErr.Message)

			msg, ok := UserMessage(err)
			assert.Equal(t, tt.userSafe, ok)
			if ok {
				assert.Equal(t, tt.message, msg)
			}
		})
	}
}

func TestClient_DetailList_KeptAsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","uid"],"msg":"field required"}]}`))
	})

	err := c.Get(context.Background(), "/x", nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindInternal, apiErr.Kind)
	assert.Contains(t, apiErr.Detail, "field required")
}

func TestClient_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"Recommendation already saved"}`))
	})

	err := c.SaveRecommendation(context.Background(), "u1", Recommendation{ID: "img-1"})
	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, APIKey: "k"})
	require.NoError(t, err)

	_, err = c.AgentModel(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	_, ok := UserMessage(err)
	assert.False(t, ok)
}

func TestClient_Download(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/documents/new-homeowner", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})

	pdf, err := c.GenerateDocument(context.Background(), "u1", "/documents/new-homeowner")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
}

func TestClient_SearchRecommendations_TagsFurniture(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Japanese", req.Style)
		assert.Equal(t, 3, req.PerPage)
		_, _ = w.Write([]byte(`{"recommendations":[{"image":"a.png","name":"Low sofa","description":"oak","match":0.8}]}`))
	})

	recs, err := c.SearchRecommendations(context.Background(), SearchRequest{Style: "Japanese", FurnitureName: "sofa", PerPage: 3})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.png", recs[0].ID)
	assert.Equal(t, "sofa", recs[0].Furniture)
}
