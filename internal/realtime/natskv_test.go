package realtime

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startJetStream runs an in-process JetStream server for the test.
func startJetStream(t *testing.T) string {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "nats server not ready")
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func newTestNATS(t *testing.T) *NATS {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := NewNATS(ctx, startJetStream(t), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func waitFor(t *testing.T, c *collector, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.strings()) >= n }, 5*time.Second, 5*time.Millisecond)
}

func TestNATS_DeliversCurrentThenUpdates(t *testing.T) {
	ctx := context.Background()
	n := newTestNATS(t)

	require.NoError(t, n.Set(ctx, "users/u1/status", "running"))

	c := &collector{}
	sub, err := n.Subscribe(ctx, "/users/u1/status/", c.add)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	waitFor(t, c, 1)

	require.NoError(t, n.Set(ctx, "users/u1/other", "x"))
	require.NoError(t, n.Set(ctx, "users/u1/status", "idle"))
	require.NoError(t, n.Set(ctx, "users/u1/status", nil))
	waitFor(t, c, 3)

	assert.Equal(t, []string{`"running"`, `"idle"`, "<nil>"}, c.strings())
}

func TestNATS_EmptyKeyDeliversOnce(t *testing.T) {
	ctx := context.Background()
	n := newTestNATS(t)

	c := &collector{}
	sub, err := n.Subscribe(ctx, "users/u1/current_step", c.add)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	waitFor(t, c, 1)

	require.NoError(t, n.Set(ctx, "users/u1/current_step", "Searching the web"))
	waitFor(t, c, 2)

	assert.Equal(t, []string{"<nil>", `"Searching the web"`}, c.strings())
}

func TestNATS_PurgeIsAbsent(t *testing.T) {
	ctx := context.Background()
	n := newTestNATS(t)
	require.NoError(t, n.Set(ctx, "users/u1/Outputs", map[string][]string{"colors": {"#fff"}}))

	c := &collector{}
	sub, err := n.Subscribe(ctx, "users/u1/Outputs", c.add)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	waitFor(t, c, 1)

	require.NoError(t, n.kv.Purge(ctx, keyFor("users/u1/Outputs")))
	waitFor(t, c, 2)

	assert.Equal(t, []string{`{"colors":["#fff"]}`, "<nil>"}, c.strings())
}

func TestNATS_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	n := newTestNATS(t)

	c := &collector{}
	sub, err := n.Subscribe(ctx, "users/u1/status", c.add)
	require.NoError(t, err)
	waitFor(t, c, 1)
	assert.Equal(t, 1, n.watching())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Zero(t, n.watching(), "unsubscribe releases the watcher entry")

	require.NoError(t, n.Set(ctx, "users/u1/status", "running"))
	assert.Never(t, func() bool { return len(c.strings()) > 1 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNATS_CloseStopsWatchers(t *testing.T) {
	ctx := context.Background()
	n := newTestNATS(t)

	c := &collector{}
	for _, ch := range []string{ChannelCurrentStep, ChannelStatus, ChannelOutputs} {
		_, err := n.Subscribe(ctx, UserPath("u1", ch), c.add)
		require.NoError(t, err)
	}
	waitFor(t, c, 3)
	assert.Equal(t, 3, n.watching())

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.Zero(t, n.watching())
	assert.True(t, n.nc.IsClosed())

	_, err := n.Subscribe(ctx, "users/u1/steps", c.add)
	assert.ErrorIs(t, err, ErrClosed)
}
