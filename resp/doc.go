// Package resp implements a resumable RESP2 decoder: the rconn.Decoder
// that turns bytes read off a Redis connection into rconn.Value tokens,
// able to suspend mid-frame when a read returns less than a full
// response and resume exactly where it left off on the next call.
package resp
