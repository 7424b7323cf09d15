package netreactor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-rconn/rconn"
)

// Conn is a net.Conn-backed rconn.Transport. Writes are encoded onto a
// buffered writer and only actually hit the network on Flush; a single
// background goroutine reads from the socket and feeds chunks to the
// handler's read path.
type Conn struct {
	conn    net.Conn
	handler *rconn.Handler

	wmu sync.Mutex
	w   *bufio.Writer

	teardownOnce sync.Once
	closeCh      chan struct{}
}

// Dial connects to addr and registers a fresh Conn with h, firing
// HandleRegistered and HandleActive before returning. If activation
// fails (replaying queued commands onto the new connection raised an
// error), the connection is torn down and that error is returned.
func Dial(ctx context.Context, network, addr string, h *rconn.Handler) (*Conn, error) {
	nc, err := (&net.Dialer{}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return newConn(nc, h)
}

func newConn(nc net.Conn, h *rconn.Handler) (*Conn, error) {
	c := &Conn{
		conn:    nc,
		handler: h,
		w:       bufio.NewWriterSize(nc, 4096),
		closeCh: make(chan struct{}),
	}

	h.HandleRegistered(c)
	go c.readLoop()

	if err := h.HandleActive(); err != nil {
		c.teardown(nil)
		return nil, err
	}
	return c, nil
}

func (c *Conn) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.handler.HandleRead(buf[:n])
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				err = nil
			}
			c.teardown(err)
			return
		}
	}
}

// teardown runs exactly once per Conn, regardless of whether it was
// triggered by a read error, a write error reported through Flush, or
// an explicit Close.
func (c *Conn) teardown(err error) {
	c.teardownOnce.Do(func() {
		if err != nil {
			c.handler.HandleException(err)
		}
		c.handler.HandleInactive()
		c.handler.HandleUnregistered()
		c.conn.Close()
		close(c.closeCh)
	})
}

// Write encodes cmd as a RESP request array and buffers it; bytes do
// not reach the network until Flush. Only *rconn.RedisCommand values
// are encodable.
func (c *Conn) Write(cmd rconn.Command, cb rconn.WriteCallback) {
	c.handler.OnOutboundWrite(cmd)

	rc, ok := cmd.(*rconn.RedisCommand)
	if !ok {
		if cb != nil {
			cb(fmt.Errorf("netreactor: command type %T cannot be encoded", cmd))
		}
		return
	}

	c.wmu.Lock()
	err := encodeRequest(c.w, rc)
	c.wmu.Unlock()

	if cb != nil {
		cb(err)
	}
}

func (c *Conn) Flush() {
	c.wmu.Lock()
	err := c.w.Flush()
	c.wmu.Unlock()
	if err != nil {
		go c.teardown(err)
	}
}

func (c *Conn) Active() bool {
	select {
	case <-c.closeCh:
		return false
	default:
		return true
	}
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Submit runs fn on its own goroutine, off the caller's stack, so it
// always executes after the handler chain that scheduled it returns.
func (c *Conn) Submit(fn func()) {
	go fn()
}

// PrepareClose bounds how long a pending write is allowed to linger
// once the handler has decided to shut the connection down.
func (c *Conn) PrepareClose() {
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
}

func (c *Conn) Close() <-chan struct{} {
	go c.teardown(nil)
	return c.closeCh
}

func encodeRequest(w *bufio.Writer, cmd *rconn.RedisCommand) error {
	if _, err := fmt.Fprintf(w, "*%d\r\n$%d\r\n%s\r\n", 1+len(cmd.Args), len(cmd.Name), cmd.Name); err != nil {
		return err
	}
	for _, arg := range cmd.Args {
		if _, err := fmt.Fprintf(w, "$%d\r\n", len(arg)); err != nil {
			return err
		}
		if _, err := w.Write(arg); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return err
		}
	}
	return nil
}
