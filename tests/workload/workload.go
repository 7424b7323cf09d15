// Package workload drives repeatable traffic patterns against a single
// rconn.Handler so chaos scenarios have something to disrupt.
package workload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rconn/rconn"
)

// Workload represents a pattern of operations to execute against a
// connection.
type Workload interface {
	Name() string
	Description() string

	// Execute runs a single operation and returns any error. Called
	// concurrently by multiple workers.
	Execute(ctx context.Context, h *rconn.Handler, workerID int) error
}

// Runner executes a workload with specified concurrency.
type Runner struct {
	handler     *rconn.Handler
	workload    Workload
	concurrency int

	opsSuccess atomic.Int64
	opsFailed  atomic.Int64
}

func NewRunner(h *rconn.Handler, w Workload, concurrency int) *Runner {
	return &Runner{handler: h, workload: w, concurrency: concurrency}
}

func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range r.concurrency {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	return nil
}

func (r *Runner) worker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := r.workload.Execute(ctx, r.handler, workerID); err != nil {
				r.opsFailed.Add(1)
			} else {
				r.opsSuccess.Add(1)
			}
		}
	}
}

func (r *Runner) Stats() WorkloadStats {
	success := r.opsSuccess.Load()
	failed := r.opsFailed.Load()
	total := success + failed

	var errorRate float64
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return WorkloadStats{
		TotalOps:   total,
		SuccessOps: success,
		FailedOps:  failed,
		ErrorRate:  errorRate,
	}
}

type WorkloadStats struct {
	TotalOps   int64
	SuccessOps int64
	FailedOps  int64
	ErrorRate  float64
}

func (s WorkloadStats) String() string {
	return fmt.Sprintf("Total: %d, Success: %d, Failed: %d, Error Rate: %.2f%%",
		s.TotalOps, s.SuccessOps, s.FailedOps, s.ErrorRate*100)
}

var registry = make(map[string]Workload)

func Register(w Workload) {
	registry[w.Name()] = w
}

func Get(name string) (Workload, error) {
	w, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("workload not found: %s", name)
	}
	return w, nil
}

func All() map[string]Workload {
	return registry
}

func init() {
	Register(&MixedWorkload{})
	Register(&GetHeavyWorkload{})
	Register(&SetHeavyWorkload{})
}

// exec issues a single command and waits for its reply, returning any
// server-side error, RESP protocol error, or cancellation.
func exec(ctx context.Context, h *rconn.Handler, name string, args ...[]byte) (rconn.Value, error) {
	out := rconn.NewBufferedOutput()
	cmd := rconn.NewRedisCommand(name, out, args...)
	if _, err := h.Write(cmd); err != nil {
		return rconn.Value{}, err
	}
	if err := cmd.Wait(ctx); err != nil {
		return rconn.Value{}, err
	}
	if errStr := out.Err(); errStr != "" {
		return out.Value(), fmt.Errorf("%s: %s", name, errStr)
	}
	return out.Value(), nil
}
