package rconn

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned by Write once the handler has been
// closed. Commands cancelled as part of that close do not carry it:
// they are cancelled, with "Connection closed" set on their output.
var ErrConnectionClosed = errors.New("rconn: connection closed")

// ErrDisconnectedNoReconnect completes a command exceptionally when it
// is written while disconnected and Options.AutoReconnect is false, so
// it will never be replayed.
var ErrDisconnectedNoReconnect = errors.New("rconn: not connected and reconnect disabled")

// ActivationError wraps a failure that happened while replaying queued
// commands onto a freshly activated transport.
type ActivationError struct {
	Err error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("rconn: activation failed: %v", e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// ProtocolError signals that the Decoder found bytes on the wire it
// could not parse as a valid response frame. It reports
// ShouldCloseConnection, so the handler closes the transport when its
// Decoder returns one.
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rconn: protocol error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("rconn: protocol error: %s", e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConnectionStateError is implemented by errors that know whether the
// connection should be torn down as a result, mirroring the teacher's
// ErrorWithConnectionState contract.
type ConnectionStateError interface {
	error
	ShouldCloseConnection() bool
}

func (e *ProtocolError) ShouldCloseConnection() bool { return true }

// ShouldCloseConnection reports whether err, or any error it wraps,
// demands the connection be closed.
func ShouldCloseConnection(err error) bool {
	var cs ConnectionStateError
	if errors.As(err, &cs) {
		return cs.ShouldCloseConnection()
	}
	return false
}
