package rconn

import "bytes"

// Decoder turns bytes accumulated in buf into a response for cmd,
// writing it to out. It reports true once cmd's response is fully
// decoded and consumed from buf; false means buf held an incomplete
// frame and nothing was consumed beyond whatever complete sub-elements
// were already folded into the decoder's own resumption state.
//
// A Decoder is stateful across calls: the handler calls Decode
// repeatedly against the same buffer as more bytes arrive, and the
// decoder is expected to resume exactly where it left off. Reset
// discards any partial progress, used when a connection drops mid
// frame and reconnects.
type Decoder interface {
	Decode(buf *bytes.Buffer, cmd Command, out OutputSink) (done bool, err error)
	Reset()
}
