package rconn

// WriteCallback reports the outcome of a single transport-level write.
// err is nil on success. It is invoked at most once per write, from
// inside Transport.Write before it returns.
type WriteCallback func(err error)

// Transport is the duplex byte connection a Handler drives. The
// default implementation, in package netreactor, wraps a net.Conn; a
// mock transport is used in tests to exercise the handler without a
// socket.
type Transport interface {
	// Write encodes and queues cmd for sending. It must, synchronously
	// and before returning, call back into the owning Handler's
	// OnOutboundWrite so the dispatch queue stays consistent with what
	// has actually been handed to the transport. cb is nil unless the
	// handler's reliability mode wants a per-write completion signal.
	Write(cmd Command, cb WriteCallback)

	// Flush pushes any buffered writes out to the network.
	Flush()

	// Active reports whether the transport is currently able to carry
	// traffic (connected and not in the middle of tearing down).
	Active() bool

	// RemoteAddr returns a human-readable peer address, used only for
	// log prefixes.
	RemoteAddr() string

	// PrepareClose is called once, before Close, to let the transport
	// reject further application writes while still letting queued
	// bytes drain.
	PrepareClose()

	// Close begins tearing down the transport and returns a channel
	// that is closed once teardown has fully completed.
	Close() <-chan struct{}

	// Submit schedules fn to run after the current handler chain
	// unwinds, rather than inline on the caller's stack. A Handler
	// uses this to deliver the post-active UpperHandler notification
	// without holding writeMu while it runs, so a notification that
	// calls back into Write cannot deadlock on a lock its own call
	// stack already holds.
	Submit(fn func())
}

// UpperHandler receives lifecycle notifications from a Handler once its
// transport becomes usable or stops being usable. Either method may be
// nil-receiver-safe no-ops; a Handler with no UpperHandler simply skips
// the Activating/Deactivating transitions' side effects.
type UpperHandler interface {
	Activated()
	Deactivated()
}
