package rconn

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler is the core connection handler: it owns the dispatch queue,
// the holding buffer, the lifecycle state machine and the decode loop,
// and drives a Transport and, optionally, an UpperHandler through the
// downward API (HandleRegistered, HandleActive, HandleRead,
// HandleInactive, HandleUnregistered, HandleException).
//
// A single Handler instance is meant to outlive any one transport: on
// AT_LEAST_ONCE reconnect it is registered against a fresh Transport
// and resumes where it left off.
type Handler struct {
	opts   Options
	mode   reliabilityMode
	logger *slog.Logger

	cs connState // guards lifecycle state L and the transport reference together

	writeMu       sync.Mutex
	dispatchQueue commandQueue // Q: written, awaiting a decoded response
	holdingBuffer commandQueue // H: written while disconnected, awaiting replay
	connErr       error        // E: cached connection-level failure

	buf     *bytes.Buffer // B: owned by the I/O context between Registered and Unregistered
	decoder Decoder

	upperMu sync.Mutex
	upper   UpperHandler

	cachedLogPrefix atomic.Pointer[string]

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewHandler builds a Handler that will drive dec against whatever
// Transport it is registered with.
func NewHandler(opts Options, dec Decoder) *Handler {
	return &Handler{
		opts:    opts,
		mode:    opts.mode(),
		logger:  slog.Default(),
		decoder: dec,
		closeCh: make(chan struct{}),
	}
}

// SetLogger overrides the slog.Logger used for TRACE/DEBUG output.
func (h *Handler) SetLogger(l *slog.Logger) {
	h.logger = l
}

// SetUpperHandler registers the handler's Activated/Deactivated
// listener. Must be called before the handler is registered with a
// transport; it is not safe to change concurrently with activity.
func (h *Handler) SetUpperHandler(u UpperHandler) {
	h.upperMu.Lock()
	h.upper = u
	h.upperMu.Unlock()
}

func (h *Handler) upperHandler() UpperHandler {
	h.upperMu.Lock()
	defer h.upperMu.Unlock()
	return h.upper
}

// IsClosed reports whether Close has been called.
func (h *Handler) IsClosed() bool {
	return h.cs.isClosed()
}

// State returns the current lifecycle state, mainly for tests and
// diagnostics.
func (h *Handler) State() LifecycleState {
	return h.cs.get()
}

// Stats is a snapshot of the two internal queues' sizes, exposed for
// diagnostics and for package metrics.
type Stats struct {
	DispatchQueueLen int
	HoldingBufferLen int
}

func (h *Handler) Stats() Stats {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return Stats{
		DispatchQueueLen: h.dispatchQueue.len(),
		HoldingBufferLen: h.holdingBuffer.len(),
	}
}

// --- Write path (§4.4) -----------------------------------------------

// Write submits cmd for sending. It returns an error only for the
// synchronous "already closed" precheck; every other failure mode
// completes cmd exceptionally and returns it with a nil error, so
// callers always inspect cmd itself for the outcome.
func (h *Handler) Write(cmd Command) (Command, error) {
	if h.cs.isClosed() {
		return nil, ErrConnectionClosed
	}

	if !h.cs.isConnected() && !h.opts.AutoReconnect {
		cmd.CompleteExceptionally(ErrDisconnectedNoReconnect)
		return cmd, nil
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.writeLocked(cmd), nil
}

// writeLocked is the write path's critical section. Callers must hold
// writeMu; it is split out of Write so executeQueuedCommands can
// re-enter it for replay without trying to re-acquire a non-reentrant
// mutex it already holds.
func (h *Handler) writeLocked(cmd Command) Command {
	transport := h.cs.getTransport()
	connected := h.cs.isConnected()

	if transport != nil && connected && transport.Active() {
		h.tracef("write() flushing command")
		switch h.mode {
		case atMostOnce:
			transport.Write(cmd, h.atMostOnceCallback(cmd))
		default:
			transport.Write(cmd, nil)
		}
		transport.Flush()
		return cmd
	}

	if h.dispatchQueue.contains(cmd) || h.holdingBuffer.contains(cmd) {
		return cmd
	}

	if h.connErr != nil {
		h.tracef("write() completing command with cached connection error")
		cmd.CompleteExceptionally(h.connErr)
		return cmd
	}

	h.tracef("write() buffering command")
	h.holdingBuffer.pushBack(cmd)
	return cmd
}

// atMostOnceCallback builds the per-write completion callback used in
// AT_MOST_ONCE mode: a failed write fails the command and pulls it back
// out of the dispatch queue by identity so it is never mistaken for one
// awaiting a response. The transport invokes it from inside
// Transport.Write, on the write path's call stack with writeMu already
// held, so it does not acquire the lock itself.
func (h *Handler) atMostOnceCallback(cmd Command) WriteCallback {
	return func(err error) {
		if err == nil {
			return
		}
		cmd.CompleteExceptionally(err)
		h.dispatchQueue.removeIdentity(cmd)
	}
}

// OnOutboundWrite is invoked by the Transport synchronously from
// within Transport.Write, before cmd's bytes reach the wire. It is the
// sole entry point that extends the dispatch queue; the write path
// above never touches Q directly. It assumes the caller is already on
// the write path's call stack with writeMu held, and does not acquire
// the lock itself.
func (h *Handler) OnOutboundWrite(cmd Command) {
	if cmd.Output() == nil {
		cmd.Complete()
		return
	}
	h.dispatchQueue.pushBack(cmd)
}

// --- Read / decode path (§4.6) ----------------------------------------

// HandleRead appends chunk to the read buffer and drives the decode
// loop against the head of the dispatch queue.
func (h *Handler) HandleRead(chunk []byte) {
	if len(chunk) == 0 || h.buf == nil {
		return
	}
	h.buf.Write(chunk)
	h.tracef("received %d byte(s)", len(chunk))
	h.decode()
}

func (h *Handler) decode() {
	for {
		h.writeMu.Lock()
		cmd, ok := h.dispatchQueue.front()
		h.writeMu.Unlock()
		if !ok {
			return
		}

		done, err := h.decoder.Decode(h.buf, cmd, cmd.Output())
		if err != nil {
			h.writeMu.Lock()
			h.dispatchQueue.popFront()
			h.writeMu.Unlock()
			cmd.CompleteExceptionally(err)
			if ShouldCloseConnection(err) {
				if transport := h.cs.getTransport(); transport != nil {
					transport.Close()
				}
			}
			return
		}
		if !done {
			return
		}

		h.writeMu.Lock()
		h.dispatchQueue.popFront()
		h.writeMu.Unlock()
		cmd.Complete()
	}
}

// --- Lifecycle (§4.1, §4.7, §4.8, §4.9) --------------------------------

// HandleRegistered fires once a Transport is ready to carry traffic for
// this handler: it allocates the read buffer, resets the decoder, and
// records the transport reference.
func (h *Handler) HandleRegistered(t Transport) {
	h.buf = defaultBufferPool.get()
	h.decoder.Reset()
	h.cs.setTransport(t)
	h.cs.set(Registered)
	h.cachedLogPrefix.Store(nil)
	h.debugf("registered")
}

// HandleActive fires once the transport is fully connected and ready
// for application traffic. It transitions to CONNECTED, then replays
// whatever was queued while disconnected. Once the replay has gone
// out, the UpperHandler's Activated notification (if one is
// registered) is scheduled on the transport's Submit so it runs after
// this call returns, never on the write path's own call stack.
func (h *Handler) HandleActive() error {
	h.cachedLogPrefix.Store(nil)
	h.debugf("active()")
	h.cs.setIfNotClosed(Connected)

	if err := h.executeQueuedCommands(); err != nil {
		h.debugf("active() ran into an exception: %v", err)
		if h.opts.CancelCommandsOnReconnectFailure {
			h.Reset()
		}
		return &ActivationError{Err: err}
	}

	if u := h.upperHandler(); u != nil {
		if transport := h.cs.getTransport(); transport != nil {
			transport.Submit(u.Activated)
		}
	}
	return nil
}

// executeQueuedCommands replays the holding buffer then the dispatch
// queue, in that order, onto the now-active transport, after moving
// through Activating (only when an UpperHandler is registered) to
// Active. Commands buffered while disconnected (H) go out before
// commands that were already in flight against a previous transport
// (Q), even though the in-flight ones were issued earlier.
//
// The UpperHandler's Activated callback is deliberately not invoked
// here: this runs under writeMu, and Activated is application code
// that may turn around and call Write, which would deadlock on a
// non-reentrant mutex this call stack already holds. HandleActive
// schedules that notification separately, after writeMu is released.
func (h *Handler) executeQueuedCommands() error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.connErr = nil

	replay := h.holdingBuffer.drain()
	replay = append(replay, h.dispatchQueue.drain()...)
	h.debugf("executeQueuedCommands() replaying %d command(s)", len(replay))

	if h.upperHandler() != nil {
		h.cs.setIfNotClosed(Activating)
	}
	h.cs.setIfNotClosed(Active)

	for _, cmd := range replay {
		if cmd.IsCancelled() {
			continue
		}
		h.writeLocked(cmd)
	}
	return nil
}

// HandleInactive fires once the transport stops carrying traffic
// (graceful or not). It transitions through DISCONNECTED and, if an
// UpperHandler is registered, DEACTIVATING to DEACTIVATED, then resets
// the decoder and read buffer so a future reconnect starts clean.
func (h *Handler) HandleInactive() {
	h.debugf("inactive()")
	h.cs.setIfNotClosed(Disconnected)

	if u := h.upperHandler(); u != nil {
		h.cs.setIfNotClosed(Deactivating)
		u.Deactivated()
	}
	h.cs.setIfNotClosed(Deactivated)

	if h.buf != nil {
		h.decoder.Reset()
		h.buf.Reset()
	}
}

// HandleUnregistered fires once the transport is fully detached. If the
// handler was closed, every queued and buffered command is cancelled
// here, since there is no future activation left to replay them onto.
func (h *Handler) HandleUnregistered() {
	if h.buf != nil {
		defaultBufferPool.put(h.buf)
		h.buf = nil
	}
	if h.cs.get() == Closed {
		h.cancelCommands("Connection closed")
	}
	h.cs.setTransport(nil)
}

// HandleException fires when the transport reports a failure outside
// the normal read/write path. It fails the command at the head of the
// dispatch queue, if any, and either caches the error for later writes
// (if the transport is no longer usable) or propagates it back to the
// caller so the transport can decide to close.
func (h *Handler) HandleException(cause error) error {
	h.tracef("exceptionCaught(): %v", cause)

	h.writeMu.Lock()
	cmd, ok := h.dispatchQueue.popFront()
	h.writeMu.Unlock()
	if ok {
		cmd.CompleteExceptionally(cause)
	}

	transport := h.cs.getTransport()
	if transport == nil || !transport.Active() || !h.cs.isConnected() {
		h.writeMu.Lock()
		h.connErr = cause
		h.writeMu.Unlock()
		return nil
	}
	return cause
}

// cancelCommands drains the dispatch queue and holding buffer, marks
// every command's output with msg if it has one, and cancels each one.
// Queue commands are cancelled ahead of buffered ones, mirroring the
// order used when a handler is torn down outright.
func (h *Handler) cancelCommands(msg string) {
	h.writeMu.Lock()
	toCancel := h.dispatchQueue.drain()
	toCancel = append(toCancel, h.holdingBuffer.drain()...)
	h.writeMu.Unlock()

	for _, cmd := range toCancel {
		if out := cmd.Output(); out != nil {
			out.SetError(msg)
		}
		cmd.Cancel()
	}
}

// Reset cancels every queued and buffered command and discards any
// partial decode state, without touching the lifecycle state or
// closing the transport. Used to recover from an activation replay
// failure when CancelCommandsOnReconnectFailure is set.
func (h *Handler) Reset() {
	h.tracef("reset()")
	h.cancelCommands("Reset")
	if h.buf != nil {
		h.decoder.Reset()
		h.buf.Reset()
	}
}

// Close tears the handler down permanently. The first call transitions
// the lifecycle state to CLOSED synchronously, before returning, and
// kicks off the transport's own close in the background; the returned
// channel closes once that teardown has fully completed. Subsequent
// calls are no-ops that return the same channel.
func (h *Handler) Close() <-chan struct{} {
	h.closeOnce.Do(func() {
		h.cs.setIfNotClosed(Closed)
		go h.finishClose()
	})
	return h.closeCh
}

func (h *Handler) finishClose() {
	transport := h.cs.getTransport()
	if transport != nil {
		transport.PrepareClose()
		<-transport.Close()
	}
	close(h.closeCh)
}
