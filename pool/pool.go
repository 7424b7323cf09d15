// Package pool provides a puddle-backed pool of *rconn.Handler, each
// wired to its own netreactor.Conn against a single Redis address.
package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"

	"github.com/go-rconn/rconn"
	"github.com/go-rconn/rconn/internal/coarsetime"
	"github.com/go-rconn/rconn/netreactor"
	"github.com/go-rconn/rconn/resp"
)

// Config configures a Pool's connections and lifecycle.
type Config struct {
	Addr        string
	MaxSize     int32
	DialTimeout time.Duration
	HandlerOpts rconn.Options
	NewDecoder  func() rconn.Decoder

	// HealthCommand is sent to idle connections found by the health
	// check sweep below; e.g. "PING". Empty disables health checks
	// entirely, regardless of HealthCheckInterval.
	HealthCommand string

	// HealthCheckInterval is how often idle connections are swept for
	// health and lifecycle limits. Zero disables the sweep.
	HealthCheckInterval time.Duration

	// HealthCheckTimeout bounds how long a single health check is
	// allowed to take before the connection is considered unhealthy.
	// Defaults to 2 seconds.
	HealthCheckTimeout time.Duration

	// MaxConnLifetime is the maximum duration a connection can be
	// reused before the sweep destroys it. Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can sit
	// idle in the pool before the sweep destroys it. Zero means no
	// limit.
	MaxConnIdleTime time.Duration
}

// Pool hands out pooled *rconn.Handler connections to a single Redis
// address, destroying and replacing them as they're released or found
// unhealthy.
type Pool struct {
	cfg  Config
	pool *puddle.Pool[*rconn.Handler]

	created   atomic.Int64
	destroyed atomic.Int64

	lastAcquire atomic.Value // time.Time, read via coarsetime to avoid a syscall on every Acquire

	stopHealthCheck chan struct{}
}

func New(cfg Config) (*Pool, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.NewDecoder == nil {
		cfg.NewDecoder = func() rconn.Decoder { return resp.New() }
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = 2 * time.Second
	}

	p := &Pool{cfg: cfg, stopHealthCheck: make(chan struct{})}

	puddleConfig := &puddle.Config[*rconn.Handler]{
		Constructor: func(ctx context.Context) (*rconn.Handler, error) {
			h := rconn.NewHandler(cfg.HandlerOpts, cfg.NewDecoder())
			dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
			if _, err := netreactor.Dial(dialCtx, "tcp", cfg.Addr, h); err != nil {
				return nil, err
			}
			p.created.Add(1)
			return h, nil
		},
		Destructor: func(h *rconn.Handler) {
			p.destroyed.Add(1)
			<-h.Close()
		},
		MaxSize: cfg.MaxSize,
	}

	underlying, err := puddle.NewPool(puddleConfig)
	if err != nil {
		return nil, err
	}
	p.pool = underlying

	if cfg.HealthCheckInterval > 0 {
		go p.healthCheckLoop()
	}
	return p, nil
}

// healthCheckLoop periodically sweeps idle connections for staleness
// and health, destroying any that exceed a lifecycle limit or fail a
// health check and releasing the rest back to the pool unused.
func (p *Pool) healthCheckLoop() {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopHealthCheck:
			return
		case <-ticker.C:
			p.checkIdleConnections()
		}
	}
}

func (p *Pool) checkIdleConnections() {
	now := time.Now()

	for _, res := range p.pool.AcquireAllIdle() {
		if p.cfg.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > p.cfg.MaxConnLifetime {
			res.Destroy()
			continue
		}
		if p.cfg.MaxConnIdleTime > 0 && res.IdleDuration() > p.cfg.MaxConnIdleTime {
			res.Destroy()
			continue
		}
		if p.cfg.HealthCommand != "" {
			if err := p.healthCheck(res.Value()); err != nil {
				res.Destroy()
				continue
			}
		}
		res.ReleaseUnused()
	}
}

// healthCheck sends cfg.HealthCommand through h and waits for a reply,
// bounded by cfg.HealthCheckTimeout.
func (p *Pool) healthCheck(h *rconn.Handler) error {
	out := rconn.NewBufferedOutput()
	cmd := rconn.NewRedisCommand(p.cfg.HealthCommand, out)

	if _, err := h.Write(cmd); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HealthCheckTimeout)
	defer cancel()
	if err := cmd.Wait(ctx); err != nil {
		return err
	}
	if errStr := out.Err(); errStr != "" {
		return fmt.Errorf("health check failed: %s", errStr)
	}
	return nil
}

// Resource wraps a pooled *rconn.Handler; callers must call Release
// exactly once when done with it.
type Resource struct {
	res *puddle.Resource[*rconn.Handler]
}

func (r *Resource) Handler() *rconn.Handler { return r.res.Value() }

// Release returns the handler to the pool, or destroys it if it is no
// longer usable.
func (r *Resource) Release() {
	if r.res.Value().IsClosed() {
		r.res.Destroy()
		return
	}
	r.res.Release()
}

func (p *Pool) Acquire(ctx context.Context) (*Resource, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	p.lastAcquire.Store(coarsetime.Now())
	return &Resource{res: res}, nil
}

func (p *Pool) Close() {
	select {
	case <-p.stopHealthCheck:
	default:
		close(p.stopHealthCheck)
	}
	p.pool.Close()
}

// Stats mirrors the shape of the teacher's own pool stats, translated
// from puddle's Stat() snapshot plus the created/destroyed counters
// this pool tracks itself (puddle does not expose those directly).
type Stats struct {
	TotalConns       int32
	IdleConns        int32
	ActiveConns      int32
	AcquireCount     int64
	AcquireWaitCount int64
	AcquireErrors    int64
	CreatedConns     int64
	DestroyedConns   int64
	LastAcquireAt    time.Time
}

func (p *Pool) Stats() Stats {
	s := p.pool.Stat()
	var lastAcquire time.Time
	if t, ok := p.lastAcquire.Load().(time.Time); ok {
		lastAcquire = t
	}
	return Stats{
		TotalConns:       s.TotalResources(),
		IdleConns:        s.IdleResources(),
		ActiveConns:      s.AcquiredResources(),
		AcquireCount:     s.AcquireCount(),
		AcquireWaitCount: s.EmptyAcquireCount(),
		AcquireErrors:    s.CanceledAcquireCount(),
		CreatedConns:     p.created.Load(),
		DestroyedConns:   p.destroyed.Load(),
		LastAcquireAt:    lastAcquire,
	}
}

