package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-rconn/rconn"
	"github.com/go-rconn/rconn/netreactor"
	"github.com/go-rconn/rconn/resp"
	"github.com/go-rconn/rconn/tests/testutils"
)

// TestReconnectReplaysBufferedWrites disables the upstream mid-flight,
// issues a write while disconnected (landing in the holding buffer),
// then re-enables the upstream, dials a fresh transport for the same
// handler and asserts the buffered write gets replayed and completed
// once the handler reactivates. Requires a real toxiproxy instance and
// upstream; skipped if toxiproxy is not reachable.
func TestReconnectReplaysBufferedWrites(t *testing.T) {
	toxiConfig := testutils.DefaultToxiproxyConfig()
	_, proxies, err := testutils.SetupToxiproxy(toxiConfig)
	if err != nil {
		t.Skipf("toxiproxy not reachable, skipping integration test: %v", err)
	}
	defer testutils.CleanupToxiproxy(proxies)

	proxy := proxies[0]
	dialAddr := "127.0.0.1:21211"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, testutils.WaitForHealthy(ctx, dialAddr))

	h := rconn.NewHandler(rconn.Options{AutoReconnect: true}, resp.New())
	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	c, err := netreactor.Dial(dialCtx, "tcp", dialAddr, h)
	require.NoError(t, err)
	defer func() { <-c.Close() }()

	require.NoError(t, proxy.Disable())
	require.Eventually(t, func() bool { return h.State() == rconn.Deactivated },
		5*time.Second, 10*time.Millisecond, "handler should detach once the upstream drops")

	out := rconn.NewBufferedOutput()
	cmd := rconn.NewRedisCommand("SET", out, []byte("reconnect-key"), []byte("reconnect-value"))
	_, err = h.Write(cmd)
	require.NoError(t, err)

	stats := h.Stats()
	require.Equal(t, 1, stats.HoldingBufferLen, "write issued while disconnected should land in the holding buffer")

	require.NoError(t, proxy.Enable())

	redialCtx, redialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redialCancel()
	c2, err := netreactor.Dial(redialCtx, "tcp", dialAddr, h)
	require.NoError(t, err)
	defer func() { <-c2.Close() }()

	select {
	case <-cmd.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("buffered command was never replayed after reconnect")
	}
	require.NoError(t, cmd.Err())

	getOut := rconn.NewBufferedOutput()
	getCmd := rconn.NewRedisCommand("GET", getOut, []byte("reconnect-key"))
	_, err = h.Write(getCmd)
	require.NoError(t, err)

	select {
	case <-getCmd.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("GET after reconnect never completed")
	}
	require.Equal(t, []byte("reconnect-value"), getOut.Value().Bulk)
}
