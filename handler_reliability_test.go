package rconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtMostOnceWriteFailureFailsCommandAndDropsFromQueue(t *testing.T) {
	h, tr := activeHandler(t, Options{AutoReconnect: false})

	out := NewBufferedOutput()
	cmd := NewRedisCommand("GET", out, []byte("a"))
	tr.failNextWrite = errMockWrite

	_, err := h.Write(cmd)
	require.NoError(t, err)

	require.Error(t, cmd.Err())
	assert.Equal(t, errMockWrite, cmd.Err())
	assert.Equal(t, 0, h.Stats().DispatchQueueLen, "a failed AT_MOST_ONCE write must not remain in the dispatch queue")
}

func TestAtLeastOnceWriteFailureDoesNotFailCommandDirectly(t *testing.T) {
	h, tr := activeHandler(t, Options{AutoReconnect: true})

	out := NewBufferedOutput()
	cmd := NewRedisCommand("GET", out, []byte("a"))
	tr.failNextWrite = errMockWrite

	_, err := h.Write(cmd)
	require.NoError(t, err)

	select {
	case <-cmd.Done():
		t.Fatal("AT_LEAST_ONCE write failure must not complete the command directly")
	default:
	}
	assert.Equal(t, 1, h.Stats().DispatchQueueLen, "AT_LEAST_ONCE issues a void write; the command stays queued awaiting a response or a future activation replay")
}

func TestWriteWhileDisconnectedWithoutAutoReconnectFailsImmediately(t *testing.T) {
	h := NewHandler(Options{AutoReconnect: false}, fakeDecoder{})

	out := NewBufferedOutput()
	cmd := NewRedisCommand("GET", out, []byte("a"))
	_, err := h.Write(cmd)
	require.NoError(t, err)

	require.Error(t, cmd.Err())
	assert.Equal(t, ErrDisconnectedNoReconnect, cmd.Err())
}

func TestWriteWhileDisconnectedWithAutoReconnectBuffers(t *testing.T) {
	h := NewHandler(Options{AutoReconnect: true}, fakeDecoder{})

	out := NewBufferedOutput()
	cmd := NewRedisCommand("GET", out, []byte("a"))
	_, err := h.Write(cmd)
	require.NoError(t, err)

	select {
	case <-cmd.Done():
		t.Fatal("command should be buffered, not completed, while disconnected with auto-reconnect")
	default:
	}
	assert.Equal(t, 1, h.Stats().HoldingBufferLen)
}

func TestWriteAfterCloseReturnsErrConnectionClosed(t *testing.T) {
	h, _ := activeHandler(t, Options{})
	h.Close()

	cmd := NewRedisCommand("GET", NewBufferedOutput(), []byte("a"))
	got, err := h.Write(cmd)
	assert.Nil(t, got)
	assert.Equal(t, ErrConnectionClosed, err)
}

func TestHandleExceptionFailsQueueHeadAndCachesErrorWhenTransportDown(t *testing.T) {
	h, tr := activeHandler(t, Options{})

	out := NewBufferedOutput()
	cmd := NewRedisCommand("GET", out, []byte("a"))
	_, err := h.Write(cmd)
	require.NoError(t, err)
	require.Equal(t, 1, h.Stats().DispatchQueueLen)

	tr.setActive(false)
	propagated := h.HandleException(errMockWrite)

	assert.Equal(t, errMockWrite, cmd.Err())
	assert.Equal(t, 0, h.Stats().DispatchQueueLen)
	assert.Nil(t, propagated, "an exception while the transport is already down is cached, not propagated")

	// A subsequent write while disconnected surfaces the cached error
	// instead of silently buffering.
	out2 := NewBufferedOutput()
	cmd2 := NewRedisCommand("GET", out2, []byte("b"))
	h.cs.set(Disconnected)
	_, err = h.Write(cmd2)
	require.NoError(t, err)
	assert.Equal(t, errMockWrite, cmd2.Err())
}

func TestHandleExceptionPropagatesWhenTransportStillActive(t *testing.T) {
	h, _ := activeHandler(t, Options{})

	out := NewBufferedOutput()
	cmd := NewRedisCommand("GET", out, []byte("a"))
	_, err := h.Write(cmd)
	require.NoError(t, err)

	propagated := h.HandleException(errMockWrite)
	assert.Equal(t, errMockWrite, propagated)
}
