// Package pool caches live outbound connections for reuse.
//
// Connections are bucketed by a namespace derived from the destination and
// every option that changes the established connection, so a request only
// ever reuses a compatible connection. The pool is bounded across all
// namespaces and evicts connections that are too old, idle for too long,
// used too often or found unhealthy.
//
// # Basic Usage
//
//	p := pool.New(nil, pool.DefaultConfig())
//	defer p.Close()
//
//	h, err := p.Acquire(ctx, "example.com", 443, transport.Options{UseTLS: true})
//	if err != nil {
//	    return err
//	}
//	conn := h.(*transport.Conn)
//	if err := conn.Start(ctx); err != nil {
//	    p.Discard(h)
//	    return err
//	}
//	defer p.Release(h)
//
// # Expiry
//
// A connection expires when it is older than TTL, has not been acquired for
// IdleTTL, or has been acquired UsageLimit times. Expired and unhealthy
// connections are removed by the sweep that runs on every Release and on
// every Acquire that finds nothing to reuse; acquired connections are never
// removed.
//
// # Health Checking
//
// Before reuse, the pool asks the handle whether it is still healthy. For
// transport connections this is a non-blocking peek at the socket: a peer
// that closed the connection or sent unsolicited bytes fails the check, and
// the failure is permanent.
//
// # Metrics
//
// Pool utilization metrics are registered with the metrics package:
//   - minthttp_pool_capacity: Maximum pool size
//   - minthttp_pool_connections: Current pooled connections
//   - minthttp_pool_connections_idle: Current idle connections
//   - minthttp_pool_connections_in_use: Connections currently acquired
//   - minthttp_pool_acquire_total: Total acquire attempts
//   - minthttp_pool_acquire_success_total: Successful acquires
//   - minthttp_pool_acquire_failed_total: Failed acquires
//   - minthttp_pool_release_total: Total releases
//   - minthttp_pool_evicted_total: Evicted connections
//   - minthttp_pool_healthcheck_fails_total: Health check failures
//   - minthttp_pool_acquire_duration_seconds: Acquire latency
package pool
