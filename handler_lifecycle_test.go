package rconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerStartsNotConnected(t *testing.T) {
	h := NewHandler(Options{}, fakeDecoder{})
	assert.Equal(t, NotConnected, h.State())
	assert.False(t, h.IsClosed())
}

func TestHandlerLifecycleHappyPath(t *testing.T) {
	h := NewHandler(Options{}, fakeDecoder{})
	tr := newMockTransport(h)

	h.HandleRegistered(tr)
	assert.Equal(t, Registered, h.State())

	require.NoError(t, h.HandleActive())
	assert.Equal(t, Active, h.State())

	h.HandleInactive()
	assert.Equal(t, Deactivated, h.State())

	h.HandleUnregistered()
}

func TestHandlerActivatingDeactivatingFireUpperHandler(t *testing.T) {
	h := NewHandler(Options{}, fakeDecoder{})
	upper := &noopUpperHandler{}
	h.SetUpperHandler(upper)
	tr := newMockTransport(h)

	h.HandleRegistered(tr)
	require.NoError(t, h.HandleActive())

	require.Eventually(t, func() bool {
		upper.mu.Lock()
		defer upper.mu.Unlock()
		return upper.activated == 1
	}, time.Second, time.Millisecond, "Activated notification never arrived")

	h.HandleInactive()

	upper.mu.Lock()
	defer upper.mu.Unlock()
	assert.Equal(t, 1, upper.activated)
	assert.Equal(t, 1, upper.deactivated)
}

func TestHandlerCloseIsIdempotentAndSetsClosedImmediately(t *testing.T) {
	h := NewHandler(Options{}, fakeDecoder{})
	tr := newMockTransport(h)
	h.HandleRegistered(tr)
	require.NoError(t, h.HandleActive())

	ch1 := h.Close()
	assert.Equal(t, Closed, h.State())
	assert.True(t, h.IsClosed())

	ch2 := h.Close()
	assert.Equal(t, ch1, ch2, "second Close must return the same channel")

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("close channel never closed")
	}
}

func TestHandlerCloseSuppressesFurtherTransitions(t *testing.T) {
	h := NewHandler(Options{}, fakeDecoder{})
	tr := newMockTransport(h)
	h.HandleRegistered(tr)
	require.NoError(t, h.HandleActive())

	h.Close()
	require.Equal(t, Closed, h.State())

	// A transition that arrives after close must not move the state
	// away from CLOSED.
	h.HandleInactive()
	assert.Equal(t, Closed, h.State())
}

func TestHandlerUnregisteredAfterCloseCancelsQueuedCommands(t *testing.T) {
	h := NewHandler(Options{AutoReconnect: true}, fakeDecoder{})
	tr := newMockTransport(h)
	tr.setActive(false)

	h.HandleRegistered(tr)

	out := NewBufferedOutput()
	cmd := NewRedisCommand("GET", out, []byte("k"))
	_, err := h.Write(cmd)
	require.NoError(t, err)

	h.Close()
	h.HandleUnregistered()

	assert.True(t, cmd.IsCancelled())
}

func TestHandlerResetMidFlightCancelsQueuedAndBufferedCommands(t *testing.T) {
	h := NewHandler(Options{AutoReconnect: true}, fakeDecoder{})
	tr := newMockTransport(h)

	h.HandleRegistered(tr)
	require.NoError(t, h.HandleActive())

	queuedOut := NewBufferedOutput()
	queued := NewRedisCommand("GET", queuedOut, []byte("k1"))
	_, err := h.Write(queued)
	require.NoError(t, err)
	require.Equal(t, 1, h.Stats().DispatchQueueLen, "command should have landed in the dispatch queue")

	tr.setActive(false)

	bufferedOut := NewBufferedOutput()
	buffered := NewRedisCommand("GET", bufferedOut, []byte("k2"))
	_, err = h.Write(buffered)
	require.NoError(t, err)
	require.Equal(t, 1, h.Stats().HoldingBufferLen, "command should have landed in the holding buffer")

	h.Reset()

	stats := h.Stats()
	assert.Equal(t, 0, stats.DispatchQueueLen)
	assert.Equal(t, 0, stats.HoldingBufferLen)
	assert.True(t, queued.IsCancelled())
	assert.True(t, buffered.IsCancelled())
	assert.NotEmpty(t, queuedOut.Err())
	assert.NotEmpty(t, bufferedOut.Err())
}

func TestIsConnectedWindow(t *testing.T) {
	h := NewHandler(Options{}, fakeDecoder{})
	assert.False(t, h.cs.isConnected())

	tr := newMockTransport(h)
	h.HandleRegistered(tr)
	assert.False(t, h.cs.isConnected(), "Registered is not yet in the connected window")

	require.NoError(t, h.HandleActive())
	assert.True(t, h.cs.isConnected())

	h.HandleInactive()
	assert.False(t, h.cs.isConnected())
}
