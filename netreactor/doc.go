// Package netreactor provides the default rconn.Transport: a
// net.Conn-backed duplex connection with an async read-loop goroutine
// feeding bytes to a Handler and a buffered writer flushed on demand.
package netreactor
