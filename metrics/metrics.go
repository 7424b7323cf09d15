// Package metrics exports a rconn pool's connection and acquire
// statistics as Prometheus gauges and counters. Per-Handler queue
// lengths are not exported.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-rconn/rconn/pool"
)

// PoolStatsFunc returns a current snapshot of a pool's stats; it is
// called once per Prometheus scrape, never cached between scrapes.
type PoolStatsFunc func() pool.Stats

// Collector implements prometheus.Collector over a single pool's
// statistics. Register it with a prometheus.Registry to expose it.
type Collector struct {
	statsFn PoolStatsFunc

	totalConns       *prometheus.Desc
	idleConns        *prometheus.Desc
	activeConns      *prometheus.Desc
	acquireCount     *prometheus.Desc
	acquireWaitCount *prometheus.Desc
	acquireErrors    *prometheus.Desc
	createdConns     *prometheus.Desc
	destroyedConns   *prometheus.Desc
}

func NewCollector(name string, statsFn PoolStatsFunc) *Collector {
	labels := prometheus.Labels{"pool": name}

	mk := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc("rconn_pool_"+metric, help, nil, labels)
	}

	return &Collector{
		statsFn:          statsFn,
		totalConns:       mk("connections_total", "Current total connections held by the pool."),
		idleConns:        mk("connections_idle", "Current idle connections in the pool."),
		activeConns:      mk("connections_active", "Current connections checked out of the pool."),
		acquireCount:     mk("acquire_total", "Total number of Acquire calls."),
		acquireWaitCount: mk("acquire_wait_total", "Total number of Acquire calls that had to wait for a connection."),
		acquireErrors:    mk("acquire_errors_total", "Total number of Acquire calls that failed or were cancelled."),
		createdConns:     mk("connections_created_total", "Total connections ever created by the pool."),
		destroyedConns:   mk("connections_destroyed_total", "Total connections ever destroyed by the pool."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.activeConns
	ch <- c.acquireCount
	ch <- c.acquireWaitCount
	ch <- c.acquireErrors
	ch <- c.createdConns
	ch <- c.destroyedConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.statsFn()

	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.activeConns, prometheus.GaugeValue, float64(s.ActiveConns))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.acquireWaitCount, prometheus.CounterValue, float64(s.AcquireWaitCount))
	ch <- prometheus.MustNewConstMetric(c.acquireErrors, prometheus.CounterValue, float64(s.AcquireErrors))
	ch <- prometheus.MustNewConstMetric(c.createdConns, prometheus.CounterValue, float64(s.CreatedConns))
	ch <- prometheus.MustNewConstMetric(c.destroyedConns, prometheus.CounterValue, float64(s.DestroyedConns))
}
