package workload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rconn/rconn"
)

// MixedWorkload performs a realistic mix of operations.
type MixedWorkload struct{}

func (w *MixedWorkload) Name() string { return "mixed" }

func (w *MixedWorkload) Description() string {
	return "Mixed operations: 60% get, 30% set, 5% delete, 5% increment"
}

func (w *MixedWorkload) Execute(ctx context.Context, h *rconn.Handler, workerID int) error {
	var key string
	if rand.Float64() < 0.3 { // hot key
		key = fmt.Sprintf("hot-key-%d", rand.IntN(10))
	} else {
		key = fmt.Sprintf("key-worker%d-%d", workerID, rand.IntN(1000))
	}

	op := rand.Float64()

	switch {
	case op < 0.60: // GET
		_, err := exec(ctx, h, "GET", []byte(key))
		return err

	case op < 0.90: // SET
		value := fmt.Sprintf("value-%d-%d", workerID, time.Now().UnixNano())
		_, err := exec(ctx, h, "SET", []byte(key), []byte(value))
		return err

	case op < 0.95: // DEL
		_, err := exec(ctx, h, "DEL", []byte(key))
		return err

	default: // INCR
		counterKey := fmt.Sprintf("counter-worker%d", workerID)
		_, err := exec(ctx, h, "INCR", []byte(counterKey))
		return err
	}
}

// GetHeavyWorkload is heavily weighted towards reads.
type GetHeavyWorkload struct{}

func (w *GetHeavyWorkload) Name() string { return "get-heavy" }

func (w *GetHeavyWorkload) Description() string {
	return "Read-heavy workload: 95% get, 5% set"
}

func (w *GetHeavyWorkload) Execute(ctx context.Context, h *rconn.Handler, workerID int) error {
	key := fmt.Sprintf("key-%d", rand.IntN(1000))

	if rand.Float64() < 0.95 {
		_, err := exec(ctx, h, "GET", []byte(key))
		return err
	}
	value := fmt.Sprintf("value-%d", time.Now().UnixNano())
	_, err := exec(ctx, h, "SET", []byte(key), []byte(value))
	return err
}

// SetHeavyWorkload is heavily weighted towards writes.
type SetHeavyWorkload struct{}

func (w *SetHeavyWorkload) Name() string { return "set-heavy" }

func (w *SetHeavyWorkload) Description() string {
	return "Write-heavy workload: 20% get, 80% set"
}

func (w *SetHeavyWorkload) Execute(ctx context.Context, h *rconn.Handler, workerID int) error {
	key := fmt.Sprintf("key-worker%d-%d", workerID, rand.IntN(100))

	if rand.Float64() < 0.20 {
		_, err := exec(ctx, h, "GET", []byte(key))
		return err
	}
	value := fmt.Sprintf("value-%d-%d", workerID, time.Now().UnixNano())
	_, err := exec(ctx, h, "SET", []byte(key), []byte(value))
	return err
}
