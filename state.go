package rconn

import "sync"

// LifecycleState enumerates the states a Handler's underlying transport
// moves through between registration and final teardown.
type LifecycleState int

const (
	NotConnected LifecycleState = iota
	Registered
	Connected
	Activating
	Active
	Disconnected
	Deactivating
	Deactivated
	Closed
)

func (s LifecycleState) String() string {
	switch s {
	case NotConnected:
		return "NOT_CONNECTED"
	case Registered:
		return "REGISTERED"
	case Connected:
		return "CONNECTED"
	case Activating:
		return "ACTIVATING"
	case Active:
		return "ACTIVE"
	case Disconnected:
		return "DISCONNECTED"
	case Deactivating:
		return "DEACTIVATING"
	case Deactivated:
		return "DEACTIVATED"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// connState guards the lifecycle state and the transport reference
// together, under a single lock, the way the original handler's
// stateLock guards both at once.
type connState struct {
	mu        sync.Mutex
	state     LifecycleState
	transport Transport
}

func (c *connState) get() LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connState) set(s LifecycleState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// setIfNotClosed is a no-op once the state has reached Closed; Closed is
// terminal.
func (c *connState) setIfNotClosed(s LifecycleState) {
	c.mu.Lock()
	if c.state != Closed {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *connState) setTransport(t Transport) {
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
}

func (c *connState) getTransport() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// isConnected reports whether the state lies in [Connected, Disconnected],
// the window during which the transport is considered usable for writes.
func (c *connState) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state >= Connected && c.state <= Disconnected
}

func (c *connState) isClosed() bool {
	return c.get() == Closed
}
