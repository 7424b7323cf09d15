// Package breaker wraps command execution in a per-server
// gobreaker.CircuitBreaker, so a server that is consistently failing
// stops receiving new writes for a cooldown period instead of piling
// up timeouts against it.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/go-rconn/rconn"
)

// NewConfig returns a factory that builds a
// *gobreaker.CircuitBreaker[bool] for a given server address. The same shape as the teacher's NewCircuitBreakerConfig,
// generalized from a single global breaker factory to one keyed per
// address via Registry.
func NewConfig(maxRequests uint32, interval, timeout time.Duration) func(addr string) *gobreaker.CircuitBreaker[bool] {
	return func(addr string) *gobreaker.CircuitBreaker[bool] {
		settings := gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[bool](settings)
	}
}

// Registry lazily creates and caches one circuit breaker per server
// address. Safe for concurrent use across multiple pooled connections.
type Registry struct {
	newBreaker func(addr string) *gobreaker.CircuitBreaker[bool]

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[bool]
}

func NewRegistry(newBreaker func(addr string) *gobreaker.CircuitBreaker[bool]) *Registry {
	return &Registry{
		newBreaker: newBreaker,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[bool]),
	}
}

func (r *Registry) breakerFor(addr string) *gobreaker.CircuitBreaker[bool] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[addr]; ok {
		return b
	}
	b := r.newBreaker(addr)
	r.breakers[addr] = b
	return b
}

// Write runs h.Write(cmd) through the circuit breaker for addr, waits
// for the command to complete, and reports the result as the
// breaker's success/failure signal. If the breaker is open, the
// command is never written.
func (r *Registry) Write(ctx context.Context, addr string, h *rconn.Handler, cmd *rconn.RedisCommand) error {
	b := r.breakerFor(addr)
	_, err := b.Execute(func() (bool, error) {
		if _, err := h.Write(cmd); err != nil {
			return false, err
		}
		if err := cmd.Wait(ctx); err != nil {
			return false, err
		}
		if err := cmd.Err(); err != nil {
			return false, err
		}
		return true, nil
	})
	return err
}
