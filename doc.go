// Package rconn implements the core of a client-side Redis protocol
// connection handler: the write path, the decode path, the
// queue-and-buffer discipline, the lifecycle state machine and the
// reliability policy that sit between a command issuer and a
// byte-oriented duplex transport.
//
// The RESP wire format, the transport itself and command encoding are
// treated as external collaborators, specified here only by the
// Decoder, Transport and Command interfaces. Concrete implementations
// live in the sibling packages resp, netreactor, pool, breaker, route
// and metrics.
package rconn
