package telemetry

import (
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

// Client is the interface for telemetry clients.
type Client interface {
	// Track records an event. No-op when telemetry is disabled.
	Track(event string, properties map[string]any)

	// Close flushes pending events. Events tracked afterwards are dropped.
	Close() error
}

// Properties is a type alias for event properties.
type Properties = map[string]any

// enqueuer is the subset of the PostHog client we use.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogClient sends schema-checked events to PostHog. Every event of one
// CLI invocation shares a run id, so a wizard's steps can be grouped.
type PostHogClient struct {
	mu      sync.Mutex
	client  enqueuer
	config  *Config
	version string
	runID   string
	closed  bool
}

// ClientConfig holds configuration for initializing the telemetry client.
type ClientConfig struct {
	// APIKey is the PostHog project API key ("telemetry.apiKey").
	APIKey string

	// Version is the CLI version string.
	Version string

	// Config is the consent state and anonymous ID.
	Config *Config

	// Endpoint is an optional self-hosted PostHog endpoint.
	Endpoint string
}

// NewPostHogClient creates a client. Without an API key or consent state the
// client is inert.
func NewPostHogClient(cfg ClientConfig) (*PostHogClient, error) {
	c := &PostHogClient{config: cfg.Config, version: cfg.Version, runID: uuid.NewString()}
	if cfg.APIKey == "" || cfg.Config == nil {
		return c, nil
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint:  cfg.Endpoint,
		BatchSize: 10,
		Interval:  time.Second,
		Logger:    quietPostHogLogger{},
	})
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

func newPostHogClientWithEnqueuer(enq enqueuer, cfg *Config, version string) *PostHogClient {
	return &PostHogClient{client: enq, config: cfg, version: version, runID: uuid.NewString()}
}

// active reports whether events would be sent.
func (c *PostHogClient) active() bool {
	return c.client != nil && !c.closed && c.config != nil && c.config.IsEnabled()
}

// Track enqueues event with the properties its schema allows. Unknown events
// and properties outside the schema are dropped, so user content never leaves
// the machine even if a caller passes it.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active() {
		return
	}

	props, ok := scrub(event, properties)
	if !ok {
		slog.Debug("telemetry event dropped", "event", event)
		return
	}
	props.Set("os", runtime.GOOS).
		Set("arch", runtime.GOARCH).
		Set("cli_version", c.version).
		Set("run_id", c.runID).
		Set("$process_person_profile", false)

	if err := c.client.Enqueue(posthog.Capture{
		DistinctId: c.config.AnonymousID,
		Event:      event,
		Properties: props,
	}); err != nil {
		slog.Debug("telemetry enqueue failed", "event", event, "error", err)
	}
}

// Close flushes the queue once.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil || c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// scrub keeps the properties listed for event.
func scrub(event string, in map[string]any) (posthog.Properties, bool) {
	allowed, ok := eventSchema[event]
	if !ok {
		return nil, false
	}
	out := posthog.NewProperties()
	for k, v := range in {
		if _, ok := allowed[k]; ok {
			out.Set(k, v)
		}
	}
	return out, true
}

// NoopClient is a telemetry client that does nothing.
type NoopClient struct{}

// Track is a no-op.
func (c *NoopClient) Track(event string, properties map[string]any) {}

// Close is a no-op.
func (c *NoopClient) Close() error { return nil }

// NewNoopClient returns a client that does nothing.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// quietPostHogLogger keeps transport warnings out of CLI output.
type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
