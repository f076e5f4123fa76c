package telemetry

import (
	"runtime"
	"sync"
	"testing"

	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct {
	mu     sync.Mutex
	events []posthog.Capture
	closed bool
}

func (m *mockEnqueuer) Enqueue(msg posthog.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if capture, ok := msg.(posthog.Capture); ok {
		m.events = append(m.events, capture)
	}
	return nil
}

func (m *mockEnqueuer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockEnqueuer) getEvents() []posthog.Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]posthog.Capture(nil), m.events...)
}

func newTestClient(cfg *Config) (*PostHogClient, *mockEnqueuer) {
	mock := &mockEnqueuer{}
	return newPostHogClientWithEnqueuer(mock, cfg, "1.2.3"), mock
}

func enabledConfig() *Config {
	return &Config{Enabled: true, ConsentAsked: true, AnonymousID: "anon-123"}
}

func TestPostHogClient_Track_WhenEnabled(t *testing.T) {
	client, mock := newTestClient(enabledConfig())

	client.Track(EventWizardStep, Properties{"flow": "new_homeowner", "index": 2})

	events := mock.getEvents()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, EventWizardStep, ev.Event)
	assert.Equal(t, "anon-123", ev.DistinctId)
	assert.Equal(t, "new_homeowner", ev.Properties["flow"])
	assert.Equal(t, 2, ev.Properties["index"])
	assert.Equal(t, runtime.GOOS, ev.Properties["os"])
	assert.Equal(t, runtime.GOARCH, ev.Properties["arch"])
	assert.Equal(t, "1.2.3", ev.Properties["cli_version"])
	assert.Equal(t, false, ev.Properties["$process_person_profile"])
}

func TestPostHogClient_Track_WhenDisabled(t *testing.T) {
	client, mock := newTestClient(&Config{ConsentAsked: true, AnonymousID: "anon"})
	client.Track(EventCommandExecuted, nil)
	assert.Empty(t, mock.getEvents())
}

func TestPostHogClient_Track_NilConfig(t *testing.T) {
	client, mock := newTestClient(nil)
	client.Track(EventCommandExecuted, nil)
	assert.Empty(t, mock.getEvents())
}

func TestPostHogClient_Close(t *testing.T) {
	client, mock := newTestClient(enabledConfig())
	require.NoError(t, client.Close())
	assert.True(t, mock.closed)

	// Closing twice does not close the transport twice; later events drop.
	mock.closed = false
	require.NoError(t, client.Close())
	assert.False(t, mock.closed)
	client.Track(EventWizardStep, nil)
	assert.Empty(t, mock.getEvents())

	uninit := &PostHogClient{}
	assert.NoError(t, uninit.Close())
}

func TestPostHogClient_Track_Scrubs(t *testing.T) {
	client, mock := newTestClient(enabledConfig())

	client.Track(EventRecommendationSave, Properties{
		"furniture": "sofa",
		"saved":     true,
		"uid":       "user-42",
		"file_name": "my-flat.png",
	})
	client.Track("unknown_event", Properties{"furniture": "sofa"})
	client.Track(EventCommandExecuted, Properties{"command": "doctor"})

	events := mock.getEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "sofa", events[0].Properties["furniture"])
	assert.NotContains(t, events[0].Properties, "uid")
	assert.NotContains(t, events[0].Properties, "file_name")
	assert.NotEmpty(t, events[0].Properties["run_id"])
	assert.Equal(t, events[0].Properties["run_id"], events[1].Properties["run_id"])
}

func TestNewPostHogClient_Uninitialized(t *testing.T) {
	for name, cfg := range map[string]ClientConfig{
		"empty key":  {Version: "1.0.0", Config: enabledConfig()},
		"nil config": {APIKey: "phc_test", Version: "1.0.0"},
	} {
		t.Run(name, func(t *testing.T) {
			client, err := NewPostHogClient(cfg)
			require.NoError(t, err)
			assert.Nil(t, client.client)
			client.Track("event", nil)
		})
	}
}

func TestNoopClient(t *testing.T) {
	client := NewNoopClient()
	client.Track("event", Properties{"key": "value"})
	assert.NoError(t, client.Close())
}

func TestPostHogClient_Track_Concurrent(t *testing.T) {
	client, mock := newTestClient(enabledConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			client.Track(EventWizardStep, Properties{"index": n})
		}(i)
	}
	wg.Wait()

	assert.Len(t, mock.getEvents(), 50)
}

func TestEventHelpers(t *testing.T) {
	client, mock := newTestClient(enabledConfig())

	TrackCommand(client, "recommend list", 120, "")
	TrackCommand(client, "upload", 5, "user")
	TrackWizardStep(client, "existing_homeowner", "budget", 3)
	TrackRecommendationSave(client, "sofa", true)
	TrackDocumentDownload(client, "new_homeowner", 2048)

	events := mock.getEvents()
	require.Len(t, events, 5)

	assert.Equal(t, true, events[0].Properties["success"])
	assert.NotContains(t, events[0].Properties, "error_kind")
	assert.Equal(t, false, events[1].Properties["success"])
	assert.Equal(t, "user", events[1].Properties["error_kind"])
	assert.Equal(t, "budget", events[2].Properties["step"])
	assert.Equal(t, EventRecommendationSave, events[3].Event)
	assert.Equal(t, true, events[3].Properties["saved"])
	assert.Equal(t, 2048, events[4].Properties["size_bytes"])
}
