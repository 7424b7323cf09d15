package rconn

import (
	"bytes"
	"errors"
	"sync"
)

// mockTransport is a Transport that never touches a real socket: writes
// are recorded in memory and fed back through OnOutboundWrite exactly
// as a real Transport would, so the handler's queue discipline can be
// exercised without a network round trip.
type mockTransport struct {
	handler *Handler

	mu            sync.Mutex
	active        bool
	writes        []Command
	failNextWrite error
	closeCh       chan struct{}
	closed        bool
}

func newMockTransport(h *Handler) *mockTransport {
	return &mockTransport{handler: h, active: true, closeCh: make(chan struct{})}
}

func (t *mockTransport) Write(cmd Command, cb WriteCallback) {
	t.handler.OnOutboundWrite(cmd)

	t.mu.Lock()
	failErr := t.failNextWrite
	t.failNextWrite = nil
	t.mu.Unlock()

	if failErr != nil {
		if cb != nil {
			cb(failErr)
		}
		return
	}

	t.mu.Lock()
	t.writes = append(t.writes, cmd)
	t.mu.Unlock()
	if cb != nil {
		cb(nil)
	}
}

func (t *mockTransport) Flush() {}

func (t *mockTransport) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *mockTransport) setActive(v bool) {
	t.mu.Lock()
	t.active = v
	t.mu.Unlock()
}

func (t *mockTransport) RemoteAddr() string { return "mock:0" }

func (t *mockTransport) Submit(fn func()) { go fn() }

func (t *mockTransport) PrepareClose() {}

func (t *mockTransport) Close() <-chan struct{} {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.closeCh)
	}
	t.mu.Unlock()
	return t.closeCh
}

func (t *mockTransport) writeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.writes)
}

var errMockWrite = errors.New("mock write failure")

// fakeDecoder decodes a newline-delimited line as a single response
// token, enough to exercise the dispatch queue and decode loop without
// depending on the RESP package.
type fakeDecoder struct{}

func (fakeDecoder) Decode(buf *bytes.Buffer, cmd Command, out OutputSink) (bool, error) {
	line, err := buf.ReadString('\n')
	if err != nil {
		// Not enough bytes yet; ReadString still consumes on EOF, so
		// put back what was read.
		buf.WriteString(line)
		return false, nil
	}
	if out != nil {
		out.SetValue(Value{Type: TypeSimpleString, Str: line[:len(line)-1]})
	}
	return true, nil
}

func (fakeDecoder) Reset() {}

type noopUpperHandler struct {
	mu         sync.Mutex
	activated  int
	deactivated int
}

func (u *noopUpperHandler) Activated() {
	u.mu.Lock()
	u.activated++
	u.mu.Unlock()
}

func (u *noopUpperHandler) Deactivated() {
	u.mu.Lock()
	u.deactivated++
	u.mu.Unlock()
}
