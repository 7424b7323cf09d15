package rconn

import (
	"context"
	"sync"
	"sync/atomic"
)

// Command is a single outbound Redis request in flight through a
// Handler. Implementations are compared by identity (the same
// interface value, not structural equality) everywhere the queue and
// holding buffer track membership.
type Command interface {
	// Output returns the sink that should receive the decoded
	// response, or nil for a fire-and-forget command that completes
	// as soon as it has been written.
	Output() OutputSink

	// Complete marks the command as successfully finished. Safe to
	// call more than once; only the first call has effect.
	Complete()

	// CompleteExceptionally marks the command as finished with an
	// error, propagating it to the OutputSink if one is present. Safe
	// to call more than once; only the first call has effect.
	CompleteExceptionally(cause error)

	// Cancel marks the command as finished without a result, used
	// when the handler discards it (reset, or close of a connection
	// with no reconnect). Safe to call more than once.
	Cancel()

	// IsCancelled reports whether Cancel has already fired.
	IsCancelled() bool
}

// RedisCommand is the default Command implementation: a command name,
// its arguments, and an optional OutputSink, completable exactly once.
type RedisCommand struct {
	Name string
	Args [][]byte

	output OutputSink

	once sync.Once
	done chan struct{}
	err  error

	cancelled atomic.Bool
}

// NewRedisCommand builds a command whose response is captured by out.
// Pass a nil out for a fire-and-forget command.
func NewRedisCommand(name string, out OutputSink, args ...[]byte) *RedisCommand {
	return &RedisCommand{
		Name:   name,
		Args:   args,
		output: out,
		done:   make(chan struct{}),
	}
}

func (c *RedisCommand) Output() OutputSink {
	return c.output
}

func (c *RedisCommand) Complete() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *RedisCommand) CompleteExceptionally(cause error) {
	c.once.Do(func() {
		c.err = cause
		if c.output != nil {
			c.output.SetError(cause.Error())
		}
		close(c.done)
	})
}

func (c *RedisCommand) Cancel() {
	c.once.Do(func() {
		c.cancelled.Store(true)
		close(c.done)
	})
}

func (c *RedisCommand) IsCancelled() bool {
	return c.cancelled.Load()
}

// Wait blocks until the command completes, the context is cancelled, or
// either has already happened.
func (c *RedisCommand) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error the command completed with, if any. Must only
// be called after Wait returns or <-c.Done() is observed closed.
func (c *RedisCommand) Err() error {
	return c.err
}

// Done exposes the completion channel for callers that want to select
// on it directly instead of calling Wait.
func (c *RedisCommand) Done() <-chan struct{} {
	return c.done
}
