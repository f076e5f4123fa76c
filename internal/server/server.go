// Package server is the loopback HTTP server that makes preview URLs
// resolvable, so a browser or image viewer can open uploaded images and
// generated documents while they are live.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/planperfect/planperfect/internal/preview"
)

// BlobSource resolves preview ids.
type BlobSource interface {
	Lookup(id string) (preview.Blob, bool)
	Live() int
}

type Server struct {
	blobs   BlobSource
	addr    string
	origins map[string]struct{}
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server for blobs on addr ("127.0.0.1:0" picks a free port).
// origins lists the browser origins allowed to fetch previews.
func New(addr string, blobs BlobSource, origins ...string) *Server {
	s := &Server{
		blobs:   blobs,
		addr:    addr,
		origins: make(map[string]struct{}, len(origins)),
	}
	for _, o := range origins {
		s.origins[o] = struct{}{}
	}
	s.server = &http.Server{
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Listen binds the address and returns the base URL previews should use.
func (s *Server) Listen() (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return "http://" + ln.Addr().String(), nil
}

// Start serves in the background. Listen must have been called.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if ln == nil {
			errChan <- fmt.Errorf("preview server: Listen not called")
			return
		}
		slog.Debug("preview server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("preview server error: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
