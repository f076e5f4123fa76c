// Package preview hands out local URLs for in-memory blobs (uploaded images,
// generated PDFs). Every URL must be revoked exactly once.
package preview

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PathPrefix is the URL path under which blobs are served.
const PathPrefix = "/preview/"

var (
	// ErrUnknownURL is returned when revoking a URL this registry never issued.
	ErrUnknownURL = errors.New("unknown preview URL")
	// ErrRevoked is returned when a URL is revoked a second time.
	ErrRevoked = errors.New("preview URL already revoked")
)

// Publisher is what components need: create a URL, release it later.
type Publisher interface {
	Create(name, mimeType string, data []byte) string
	Revoke(url string) error
}

// Blob is a live preview.
type Blob struct {
	Name string
	MIME string
	Data []byte
}

// Stats counts registry traffic. Rejected counts failed Revoke calls.
type Stats struct {
	Created  int
	Revoked  int
	Rejected int
}

// Registry is the in-process table of live previews.
type Registry struct {
	mu      sync.RWMutex
	baseURL string
	live    map[string]Blob
	revoked map[string]struct{}
	stats   Stats
}

// NewRegistry creates a Registry whose URLs start with baseURL
// (e.g. "http://127.0.0.1:7411").
func NewRegistry(baseURL string) *Registry {
	return &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		live:    make(map[string]Blob),
		revoked: make(map[string]struct{}),
	}
}

// SetBaseURL changes the prefix used for URLs created from now on.
func (r *Registry) SetBaseURL(baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseURL = strings.TrimRight(baseURL, "/")
}

// Create stores data and returns its URL.
func (r *Registry) Create(name, mimeType string, data []byte) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[id] = Blob{Name: name, MIME: mimeType, Data: data}
	r.stats.Created++
	return r.baseURL + PathPrefix + id
}

// Revoke releases the blob behind url.
func (r *Registry) Revoke(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.idOf(url)
	if err != nil {
		r.stats.Rejected++
		return err
	}
	if _, ok := r.revoked[id]; ok {
		r.stats.Rejected++
		return fmt.Errorf("%w: %s", ErrRevoked, url)
	}
	if _, ok := r.live[id]; !ok {
		r.stats.Rejected++
		return fmt.Errorf("%w: %s", ErrUnknownURL, url)
	}
	delete(r.live, id)
	r.revoked[id] = struct{}{}
	r.stats.Revoked++
	return nil
}

// Lookup returns the live blob with the given id.
func (r *Registry) Lookup(id string) (Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.live[id]
	return b, ok
}

// Live returns the number of unrevoked URLs.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// Stats returns the traffic counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Registry) idOf(url string) (string, error) {
	i := strings.LastIndex(url, PathPrefix)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownURL, url)
	}
	return url[i+len(PathPrefix):], nil
}
