package rconn

import (
	"bytes"
	"sync"
)

// bufferPool recycles the read buffers a Handler allocates on each
// registration, so a reconnect storm doesn't churn through a fresh
// allocation every attempt.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(initialSize int) *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

func (p *bufferPool) get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *bufferPool) put(buf *bytes.Buffer) {
	buf.Reset()
	p.pool.Put(buf)
}

var defaultBufferPool = newBufferPool(4096)
