package pool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakePingServer(t *testing.T) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				for {
					n, err := conn.Read(buf)
					if err != nil {
						return
					}
					if n > 0 {
						conn.Write([]byte("+PONG\r\n"))
					}
				}
			}()
		}
	}()

	return listener.Addr().String()
}

func TestPoolAcquireReleaseAndStats(t *testing.T) {
	addr := fakePingServer(t)
	p, err := New(Config{Addr: addr, MaxSize: 2})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r1, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotNil(t, r1.Handler())

	stats := p.Stats()
	require.Equal(t, int32(1), stats.ActiveConns)
	require.False(t, stats.LastAcquireAt.IsZero())

	r1.Release()

	stats = p.Stats()
	require.Equal(t, int32(0), stats.ActiveConns)
	require.Equal(t, int32(1), stats.IdleConns)
	require.EqualValues(t, 1, stats.CreatedConns)
}

func TestPoolHealthCheckSweepReleasesHealthyIdleConnections(t *testing.T) {
	addr := fakePingServer(t)
	p, err := New(Config{
		Addr:                addr,
		MaxSize:             2,
		HealthCommand:       "PING",
		HealthCheckInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r1, err := p.Acquire(ctx)
	require.NoError(t, err)
	r1.Release()

	require.Eventually(t, func() bool {
		stats := p.Stats()
		return stats.IdleConns == 1 && stats.DestroyedConns == 0
	}, time.Second, 10*time.Millisecond, "a healthy idle connection should survive the sweep")
}

func TestPoolHealthCheckSweepEvictsIdleConnectionsPastMaxIdleTime(t *testing.T) {
	addr := fakePingServer(t)
	p, err := New(Config{
		Addr:                addr,
		MaxSize:             2,
		HealthCheckInterval: 10 * time.Millisecond,
		MaxConnIdleTime:     20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r1, err := p.Acquire(ctx)
	require.NoError(t, err)
	r1.Release()

	require.Eventually(t, func() bool {
		return p.Stats().DestroyedConns >= 1
	}, time.Second, 10*time.Millisecond, "an idle connection past MaxConnIdleTime should be destroyed")
}
