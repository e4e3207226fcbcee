package pool

import "github.com/go-i2p/minthttp/lib/metrics"

// Pool utilization metrics
var (
	// PoolCapacity is the maximum pool size.
	PoolCapacity = metrics.NewGauge(
		"minthttp_pool_capacity",
		"Maximum number of connections in the pool",
	)
	// PoolConnections is the current number of pooled connections.
	PoolConnections = metrics.NewGauge(
		"minthttp_pool_connections",
		"Current number of pooled connections",
	)
	// PoolConnectionsIdle is the current number of idle connections.
	PoolConnectionsIdle = metrics.NewGauge(
		"minthttp_pool_connections_idle",
		"Current number of idle connections in the pool",
	)
	// PoolConnectionsInUse is the number of connections currently acquired.
	PoolConnectionsInUse = metrics.NewGauge(
		"minthttp_pool_connections_in_use",
		"Number of connections currently acquired",
	)
	// PoolAcquireTotal is the total number of acquire attempts.
	PoolAcquireTotal = metrics.NewCounter(
		"minthttp_pool_acquire_total",
		"Total number of connection acquire attempts",
	)
	// PoolAcquireSuccessTotal is the number of successful acquires.
	PoolAcquireSuccessTotal = metrics.NewCounter(
		"minthttp_pool_acquire_success_total",
		"Total number of successful connection acquires",
	)
	// PoolAcquireFailedTotal is the number of failed acquires.
	PoolAcquireFailedTotal = metrics.NewCounter(
		"minthttp_pool_acquire_failed_total",
		"Total number of failed connection acquires",
	)
	// PoolReleaseTotal is the number of releases.
	PoolReleaseTotal = metrics.NewCounter(
		"minthttp_pool_release_total",
		"Total number of connection releases",
	)
	// PoolEvictedTotal is the number of connections removed by sweeps.
	PoolEvictedTotal = metrics.NewCounter(
		"minthttp_pool_evicted_total",
		"Total number of connections evicted from the pool",
	)
	// PoolHealthCheckFailsTotal is the number of health check failures.
	PoolHealthCheckFailsTotal = metrics.NewCounter(
		"minthttp_pool_healthcheck_fails_total",
		"Total number of connections that failed health checks",
	)
	// PoolAcquireLatency tracks time spent acquiring connections.
	PoolAcquireLatency = metrics.NewHistogram(
		"minthttp_pool_acquire_duration_seconds",
		"Time spent acquiring a connection from the pool",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics updates the pool gauges from Stats.
func UpdateMetrics(stats Stats) {
	PoolCapacity.Set(int64(stats.Capacity))
	PoolConnections.Set(int64(stats.Entries))
	PoolConnectionsIdle.Set(int64(stats.Idle))
	PoolConnectionsInUse.Set(int64(stats.InUse))
}
