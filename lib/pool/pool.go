// Package pool provides a bounded connection pool keyed by destination and
// transport options. It supports time, idle and usage based expiry, passive
// health checks, and blocking acquisition under contention.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-i2p/minthttp/lib/metrics"
	"github.com/go-i2p/minthttp/lib/transport"
)

// minBackoff is the shortest wait between acquisition attempts.
const minBackoff = 100 * time.Millisecond

// Config configures the connection pool.
type Config struct {
	// Capacity is the maximum number of connections across all destinations.
	// Default: 10
	Capacity int
	// TTL is the maximum lifetime of a connection.
	// Default: 10 seconds
	TTL time.Duration
	// IdleTTL is how long a connection may go unused before it expires.
	// Default: 5 seconds
	IdleTTL time.Duration
	// AcquireTimeout bounds how long Acquire waits for a connection.
	// Default: 5 seconds
	AcquireTimeout time.Duration
	// UsageLimit is how many times a connection may be acquired.
	// Default: 100
	UsageLimit int
	// SweepInterval runs a background eviction sweep on this period.
	// Set to 0 to sweep only on Acquire and Release.
	// Default: 0
	SweepInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       10,
		TTL:            10 * time.Second,
		IdleTTL:        5 * time.Second,
		AcquireTimeout: 5 * time.Second,
		UsageLimit:     100,
	}
}

// Pool is a connection pool.
type Pool struct {
	factory Factory
	config  Config
	now     func() time.Time

	mu        sync.Mutex
	entries   []*entry
	notify    chan struct{}
	closed    bool
	stopSweep chan struct{}
	sweepDone chan struct{}

	// Metrics
	created         uint64
	acquireCount    uint64
	acquireSuccess  uint64
	acquireFailed   uint64
	acquireTimeouts uint64
	reuseCount      uint64
	releaseCount    uint64
	evictCount      uint64
	healthFails     uint64
}

// New creates a new connection pool. A nil factory uses transport.NewFactory.
func New(factory Factory, cfg Config) *Pool {
	defaults := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaults.IdleTTL
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaults.AcquireTimeout
	}
	if cfg.UsageLimit <= 0 {
		cfg.UsageLimit = defaults.UsageLimit
	}
	if factory == nil {
		factory = TransportFactory(transport.NewFactory())
	}

	p := &Pool{
		factory:   factory,
		config:    cfg,
		now:       time.Now,
		entries:   make([]*entry, 0, cfg.Capacity),
		notify:    make(chan struct{}),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go p.sweepLoop()
	} else {
		close(p.sweepDone)
	}

	log.WithField("capacity", cfg.Capacity).
		WithField("ttl", cfg.TTL).
		WithField("idleTTL", cfg.IdleTTL).
		WithField("usageLimit", cfg.UsageLimit).
		Debug("pool created")
	return p
}

// Config returns the effective pool configuration.
func (p *Pool) Config() Config {
	return p.config
}

// Acquire returns a connection for host:port compatible with opts.
//
// A free, fresh and healthy connection in the same namespace is reused;
// otherwise a new one is created when the pool has headroom. When the pool
// is full, Acquire waits for a release or eviction until AcquireTimeout
// elapses and then returns an *AcquireTimeoutError. Every handle returned
// must be given back with Release or Discard.
func (p *Pool) Acquire(ctx context.Context, host string, port int, opts transport.Options) (Handle, error) {
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()
	timer := metrics.NewTimer(PoolAcquireLatency)

	namespace := p.factory.Fingerprint(host, port, opts)
	deadline := p.now().Add(p.config.AcquireTimeout)

	for {
		if !p.now().Before(deadline) {
			atomic.AddUint64(&p.acquireTimeouts, 1)
			p.acquireFailure()
			log.WithField("host", host).WithField("port", port).
				WithField("timeout", p.config.AcquireTimeout).
				Debug("acquire timed out")
			return nil, &AcquireTimeoutError{Timeout: p.config.AcquireTimeout}
		}
		if err := ctx.Err(); err != nil {
			p.acquireFailure()
			return nil, err
		}

		h, notify, err := p.tryAcquire(namespace, host, port, opts)
		if err != nil {
			p.acquireFailure()
			return nil, err
		}
		if h != nil {
			timer.ObserveDuration()
			atomic.AddUint64(&p.acquireSuccess, 1)
			PoolAcquireSuccessTotal.Inc()
			return h, nil
		}

		log.WithField("host", host).WithField("port", port).Debug("waiting for available connection")
		p.wait(ctx, notify, deadline)
	}
}

func (p *Pool) acquireFailure() {
	atomic.AddUint64(&p.acquireFailed, 1)
	PoolAcquireFailedTotal.Inc()
}

// tryAcquire makes one acquisition attempt. When the pool is full it returns
// a nil handle and the channel that will be closed on the next release or eviction.
func (p *Pool) tryAcquire(namespace, host string, port int, opts transport.Options) (Handle, <-chan struct{}, error) {
	var removed []Handle
	defer func() { p.closeHandles(removed) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, ErrPoolClosed
	}

	now := p.now()
	for _, e := range p.entries {
		if e.namespace != namespace || !e.available(now, p.config) {
			continue
		}
		if !e.healthy() {
			atomic.AddUint64(&p.healthFails, 1)
			PoolHealthCheckFailsTotal.Inc()
			continue
		}
		e.acquire(now)
		atomic.AddUint64(&p.reuseCount, 1)
		metrics.ConnectionsReused.Inc()
		log.WithField("id", e.handle.ID()).WithField("usage", e.usage).Debug("reusing pooled connection")
		return e.handle, nil, nil
	}

	removed = p.sweepLocked(now)

	if len(p.entries) >= p.config.Capacity {
		return nil, p.notify, nil
	}

	h, err := p.factory.Create(host, port, opts)
	if err != nil {
		log.WithField("host", host).WithField("port", port).WithError(err).Debug("failed to create connection")
		return nil, nil, err
	}
	e := p.insertLocked(h, namespace, now)
	e.acquire(now)
	atomic.AddUint64(&p.created, 1)
	log.WithField("id", h.ID()).WithField("entries", len(p.entries)).Debug("created pooled connection")
	return h, nil, nil
}

// insertLocked appends a new entry for h. A handle identity already present
// in the pool is a factory bug and panics with *DuplicateHandleError.
func (p *Pool) insertLocked(h Handle, namespace string, now time.Time) *entry {
	if p.findLocked(h.ID()) != nil {
		panic(&DuplicateHandleError{ID: h.ID()})
	}
	e := newEntry(h, namespace, now)
	p.entries = append(p.entries, e)
	return e
}

func (p *Pool) findLocked(id uuid.UUID) *entry {
	for _, e := range p.entries {
		if e.handle.ID() == id {
			return e
		}
	}
	return nil
}

// wait blocks until notify fires, the backoff elapses or ctx is done.
// The backoff is half the remaining time, at least minBackoff, and never
// past the deadline.
func (p *Pool) wait(ctx context.Context, notify <-chan struct{}, deadline time.Time) {
	remaining := deadline.Sub(p.now())
	backoff := remaining / 2
	if backoff < minBackoff {
		backoff = minBackoff
	}
	if backoff > remaining {
		backoff = remaining
	}
	if backoff <= 0 {
		return
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-notify:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Release returns a handle to the pool and runs an eviction sweep.
// Releasing a handle the pool does not track is a no-op apart from the sweep.
func (p *Pool) Release(h Handle) error {
	return p.release(h, false)
}

// Discard returns a handle that must not be reused. The connection is
// marked unhealthy and closed by the sweep that follows.
func (p *Pool) Discard(h Handle) error {
	return p.release(h, true)
}

func (p *Pool) release(h Handle, discard bool) error {
	if h == nil {
		return ErrHandleRequired
	}

	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	var removed []Handle
	defer func() { p.closeHandles(removed) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if e := p.findLocked(h.ID()); e != nil {
		if discard {
			e.markUnhealthy()
		}
		e.release()
		p.notifyLocked()
		log.WithField("id", h.ID()).WithField("discard", discard).Debug("connection released to pool")
	} else {
		log.WithField("id", h.ID()).Debug("released connection is not tracked by the pool")
	}

	removed = p.sweepLocked(p.now())
	return nil
}

// sweepLocked removes every entry that is expired or unhealthy and not
// acquired, and returns their handles for closing outside the lock.
// Once the pool is closed every idle entry is removed.
func (p *Pool) sweepLocked(now time.Time) []Handle {
	var removed []Handle
	kept := p.entries[:0]
	for _, e := range p.entries {
		if !e.acquired && (p.closed || e.toClean(now, p.config)) {
			removed = append(removed, e.handle)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(p.entries); i++ {
		p.entries[i] = nil
	}
	p.entries = kept

	if len(removed) > 0 {
		atomic.AddUint64(&p.evictCount, uint64(len(removed)))
		PoolEvictedTotal.Add(uint64(len(removed)))
		p.notifyLocked()
		log.WithField("evicted", len(removed)).WithField("entries", len(p.entries)).Debug("sweep removed connections")
	}
	return removed
}

// notifyLocked wakes every waiting Acquire.
func (p *Pool) notifyLocked() {
	close(p.notify)
	p.notify = make(chan struct{})
}

// closeHandles closes evicted handles. Errors are not actionable here.
func (p *Pool) closeHandles(handles []Handle) {
	failed := 0
	for _, h := range handles {
		if err := h.Close(); err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.WithField("failed", failed).Debug("errors closing evicted connections")
	}
}

// Close closes the pool. Idle connections are closed immediately and
// acquired ones when they are released. Acquire fails with ErrPoolClosed
// afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	p.closed = true
	close(p.stopSweep)
	removed := p.sweepLocked(p.now())
	p.notifyLocked()
	p.mu.Unlock()

	// Wait for the sweep goroutine
	<-p.sweepDone

	var g errgroup.Group
	for _, h := range removed {
		g.Go(h.Close)
	}
	err := g.Wait()

	log.WithField("closed", len(removed)).Debug("pool closed")
	return err
}

// sweepLoop periodically evicts expired and unhealthy idle connections.
func (p *Pool) sweepLoop() {
	defer close(p.sweepDone)

	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pool) sweep() {
	var removed []Handle
	defer func() { p.closeHandles(removed) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	removed = p.sweepLocked(p.now())
}

// Len returns the number of connections currently in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Created returns the total number of connections the pool has created.
func (p *Pool) Created() uint64 {
	return atomic.LoadUint64(&p.created)
}

// Stats contains pool statistics.
type Stats struct {
	// Capacity is the maximum pool size.
	Capacity int
	// Entries is the current number of pooled connections.
	Entries int
	// Idle is the number of connections not acquired.
	Idle int
	// InUse is the number of acquired connections.
	InUse int
	// Created is the total number of connections created.
	Created uint64
	// AcquireCount is the total number of acquire attempts.
	AcquireCount uint64
	// AcquireSuccess is the number of successful acquires.
	AcquireSuccess uint64
	// AcquireFailed is the number of failed acquires, timeouts included.
	AcquireFailed uint64
	// AcquireTimeouts is the number of acquires that timed out.
	AcquireTimeouts uint64
	// Reused is the number of acquires served by an existing connection.
	Reused uint64
	// ReleaseCount is the number of releases and discards.
	ReleaseCount uint64
	// Evicted is the number of connections removed by sweeps.
	Evicted uint64
	// HealthCheckFails is the number of connections that failed health checks.
	HealthCheckFails uint64
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	inUse := 0
	for _, e := range p.entries {
		if e.acquired {
			inUse++
		}
	}

	return Stats{
		Capacity:         p.config.Capacity,
		Entries:          len(p.entries),
		Idle:             len(p.entries) - inUse,
		InUse:            inUse,
		Created:          atomic.LoadUint64(&p.created),
		AcquireCount:     atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess:   atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:    atomic.LoadUint64(&p.acquireFailed),
		AcquireTimeouts:  atomic.LoadUint64(&p.acquireTimeouts),
		Reused:           atomic.LoadUint64(&p.reuseCount),
		ReleaseCount:     atomic.LoadUint64(&p.releaseCount),
		Evicted:          atomic.LoadUint64(&p.evictCount),
		HealthCheckFails: atomic.LoadUint64(&p.healthFails),
	}
}
