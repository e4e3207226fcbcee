package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
	"github.com/go-i2p/minthttp/lib/testutil"
	"github.com/go-i2p/minthttp/lib/transport"
)

// mockConn is a mock handle for testing.
type mockConn struct {
	id        uuid.UUID
	mu        sync.Mutex
	closed    bool
	unhealthy bool
	closeErr  error
}

func (m *mockConn) ID() uuid.UUID {
	return m.id
}

func (m *mockConn) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && !m.unhealthy
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *mockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConn) SetUnhealthy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhealthy = true
}

// mockFactory creates mock handles and fingerprints like the transport.
type mockFactory struct {
	counter  int32
	err      error
	fixedID  uuid.UUID
	closeErr error
}

func (f *mockFactory) Fingerprint(host string, port int, opts transport.Options) string {
	return transport.Fingerprint(host, port, opts)
}

func (f *mockFactory) Create(host string, port int, opts transport.Options) (Handle, error) {
	if f.err != nil {
		return nil, f.err
	}
	atomic.AddInt32(&f.counter, 1)
	id := uuid.New()
	if f.fixedID != uuid.Nil {
		id = f.fixedID
	}
	return &mockConn{id: id, closeErr: f.closeErr}, nil
}

func (f *mockFactory) Count() int32 {
	return atomic.LoadInt32(&f.counter)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestPool(t *testing.T, f Factory, cfg Config) *Pool {
	t.Helper()
	p := New(f, cfg)
	t.Cleanup(func() { p.Close() })
	return p
}

func acquire(t *testing.T, p *Pool, host string) Handle {
	t.Helper()
	h, err := p.Acquire(context.Background(), host, 80, transport.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	return h
}

func TestPoolAcquireRelease(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 3

	p := newTestPool(t, f, cfg)

	h1 := acquire(t, p, "example.com")
	if h1 == nil {
		t.Fatal("Expected non-nil handle")
	}

	stats := p.Stats()
	if stats.Entries != 1 {
		t.Errorf("Expected 1 entry, got %d", stats.Entries)
	}
	if stats.InUse != 1 {
		t.Errorf("Expected 1 in use, got %d", stats.InUse)
	}

	if err := p.Release(h1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	stats = p.Stats()
	if stats.Idle != 1 {
		t.Errorf("Expected 1 idle after release, got %d", stats.Idle)
	}
	if stats.InUse != 0 {
		t.Errorf("Expected 0 in use after release, got %d", stats.InUse)
	}

	// Acquire again - should get same handle
	h2 := acquire(t, p, "example.com")
	if h2 != h1 {
		t.Error("Expected to get same handle from pool")
	}
	if p.Created() != 1 {
		t.Errorf("Expected 1 handle created, got %d", p.Created())
	}
	if p.Stats().Reused != 1 {
		t.Errorf("Expected 1 reuse, got %d", p.Stats().Reused)
	}
	p.Release(h2)
}

func TestPoolCapacity(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 2
	cfg.AcquireTimeout = 200 * time.Millisecond

	p := newTestPool(t, f, cfg)

	h1 := acquire(t, p, "example.com")
	h2 := acquire(t, p, "example.com")

	if f.Count() != 2 {
		t.Errorf("Expected 2 handles created, got %d", f.Count())
	}

	start := time.Now()
	_, err := p.Acquire(context.Background(), "example.com", 80, transport.Options{})
	elapsed := time.Since(start)

	var timeoutErr *AcquireTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected *AcquireTimeoutError, got %v", err)
	}
	if timeoutErr.Timeout != cfg.AcquireTimeout {
		t.Errorf("Expected timeout %v, got %v", cfg.AcquireTimeout, timeoutErr.Timeout)
	}
	if !errors.Is(err, ErrAcquireTimeout) || !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("Expected error to match ErrAcquireTimeout and ErrTimeout, got %v", err)
	}
	if elapsed < cfg.AcquireTimeout {
		t.Errorf("Acquire gave up early after %v", elapsed)
	}
	if elapsed > cfg.AcquireTimeout+500*time.Millisecond {
		t.Errorf("Acquire overran its timeout: %v", elapsed)
	}
	if p.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", p.Len())
	}
	if p.Stats().AcquireTimeouts != 1 {
		t.Errorf("Expected 1 timeout, got %d", p.Stats().AcquireTimeouts)
	}

	// Release one and try again
	p.Release(h1)

	h3 := acquire(t, p, "example.com")
	if h3 != h1 {
		t.Error("Expected to get released handle")
	}

	p.Release(h2)
	p.Release(h3)
}

func TestPoolWaiterWokenByRelease(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 1
	cfg.AcquireTimeout = 4 * time.Second

	p := newTestPool(t, f, cfg)
	h := acquire(t, p, "example.com")

	type result struct {
		h       Handle
		err     error
		elapsed time.Duration
	}
	done := make(chan result, 1)
	go func() {
		start := time.Now()
		got, err := p.Acquire(context.Background(), "example.com", 80, transport.Options{})
		done <- result{got, err, time.Since(start)}
	}()

	time.Sleep(50 * time.Millisecond)
	p.Release(h)

	r := <-done
	if r.err != nil {
		t.Fatalf("Waiting acquire failed: %v", r.err)
	}
	if r.h != h {
		t.Error("Expected the waiter to receive the released handle")
	}
	// Without a wake-up the first backoff alone would be two seconds.
	if r.elapsed > time.Second {
		t.Errorf("Expected release to wake the waiter, took %v", r.elapsed)
	}
	p.Release(r.h)
}

func TestPoolMutualExclusion(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 3

	p := newTestPool(t, f, cfg)

	var (
		mu    sync.Mutex
		inUse = make(map[uuid.UUID]bool)
	)

	const workers = 20
	const opsPerWorker = 10

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := 0; j < opsPerWorker; j++ {
				h, err := p.Acquire(context.Background(), "example.com", 80, transport.Options{})
				if err != nil {
					return err
				}

				mu.Lock()
				if inUse[h.ID()] {
					mu.Unlock()
					return errors.New("handle acquired twice")
				}
				inUse[h.ID()] = true
				if len(inUse) > cfg.Capacity {
					mu.Unlock()
					return errors.New("capacity exceeded")
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				delete(inUse, h.ID())
				mu.Unlock()

				if err := p.Release(h); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("Concurrent acquire/release failed: %v", err)
	}

	stats := p.Stats()
	if stats.AcquireSuccess != workers*opsPerWorker {
		t.Errorf("Expected %d successful acquires, got %d", workers*opsPerWorker, stats.AcquireSuccess)
	}
	if stats.AcquireFailed != 0 {
		t.Errorf("Expected 0 failed acquires, got %d", stats.AcquireFailed)
	}
	if p.Len() > cfg.Capacity {
		t.Errorf("Expected at most %d entries, got %d", cfg.Capacity, p.Len())
	}
}

func TestPoolNamespaces(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 2
	cfg.IdleTTL = 50 * time.Millisecond
	cfg.AcquireTimeout = time.Second

	p := newTestPool(t, f, cfg)

	a := acquire(t, p, "a.example.com")
	p.Release(a)
	b := acquire(t, p, "b.example.com")
	if b == a {
		t.Fatal("Expected a different destination to get a different handle")
	}
	p.Release(b)

	// The pool is full of idle handles for other destinations. They are
	// swept once idle and make room for the new destination.
	c, err := p.Acquire(context.Background(), "c.example.com", 80, transport.Options{})
	if err != nil {
		t.Fatalf("Expected expired entries to make room, got %v", err)
	}
	if !a.(*mockConn).IsClosed() || !b.(*mockConn).IsClosed() {
		t.Error("Expected expired handles to be closed")
	}
	p.Release(c)
}

func TestPoolIdleExpiry(t *testing.T) {
	f := &mockFactory{}
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.IdleTTL = 50 * time.Millisecond

	p := newTestPool(t, f, cfg)
	p.now = clock.Now

	h1 := acquire(t, p, "example.com")
	p.Release(h1)

	clock.Advance(40 * time.Millisecond)
	h2 := acquire(t, p, "example.com")
	if h2 != h1 {
		t.Error("Expected reuse within the idle TTL")
	}
	p.Release(h2)

	clock.Advance(60 * time.Millisecond)
	h3 := acquire(t, p, "example.com")
	if h3 == h1 {
		t.Error("Should get new handle after idle timeout")
	}
	if !h1.(*mockConn).IsClosed() {
		t.Error("Idle handle should be closed")
	}
	if p.Created() != 2 {
		t.Errorf("Expected 2 handles created, got %d", p.Created())
	}
	p.Release(h3)
}

func TestPoolTTLExpiry(t *testing.T) {
	f := &mockFactory{}
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.TTL = time.Second
	cfg.IdleTTL = time.Minute

	p := newTestPool(t, f, cfg)
	p.now = clock.Now

	h1 := acquire(t, p, "example.com")
	p.Release(h1)

	for i := 0; i < 2; i++ {
		clock.Advance(400 * time.Millisecond)
		h := acquire(t, p, "example.com")
		if h != h1 {
			t.Errorf("Expected reuse before the TTL, iteration %d", i)
		}
		p.Release(h)
	}

	clock.Advance(400 * time.Millisecond)
	h2 := acquire(t, p, "example.com")
	if h2 == h1 {
		t.Error("Should get new handle after TTL")
	}
	if !h1.(*mockConn).IsClosed() {
		t.Error("Expired handle should be closed")
	}
	p.Release(h2)
}

func TestPoolUsageLimit(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.UsageLimit = 3

	p := newTestPool(t, f, cfg)

	first := acquire(t, p, "example.com")
	p.Release(first)
	for i := 0; i < 2; i++ {
		h := acquire(t, p, "example.com")
		if h != first {
			t.Errorf("Expected reuse below the usage limit, iteration %d", i)
		}
		p.Release(h)
	}

	if !first.(*mockConn).IsClosed() {
		t.Error("Handle should be closed once its usage limit is reached")
	}

	h := acquire(t, p, "example.com")
	if h == first {
		t.Error("Should get new handle after usage limit")
	}
	p.Release(h)
}

func TestPoolUnhealthyEviction(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, DefaultConfig())

	h1 := acquire(t, p, "example.com")
	p.Release(h1)
	h1.(*mockConn).SetUnhealthy()

	h2 := acquire(t, p, "example.com")
	if h2 == h1 {
		t.Error("Should not get unhealthy handle")
	}
	if !h1.(*mockConn).IsClosed() {
		t.Error("Unhealthy handle should be closed")
	}
	if p.Stats().HealthCheckFails != 1 {
		t.Errorf("Expected 1 health check failure, got %d", p.Stats().HealthCheckFails)
	}
	p.Release(h2)
}

func TestPoolDiscard(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, DefaultConfig())

	h := acquire(t, p, "example.com")
	if err := p.Discard(h); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	if p.Len() != 0 {
		t.Errorf("Expected 0 entries after discard, got %d", p.Len())
	}
	if !h.(*mockConn).IsClosed() {
		t.Error("Discarded handle should be closed")
	}
}

func TestPoolReleaseUntracked(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, DefaultConfig())

	h := acquire(t, p, "example.com")
	stranger := &mockConn{id: uuid.New()}

	if err := p.Release(stranger); err != nil {
		t.Errorf("Expected releasing an untracked handle to succeed, got %v", err)
	}
	if stranger.IsClosed() {
		t.Error("Untracked handle should be left alone")
	}
	if p.Len() != 1 || p.Stats().InUse != 1 {
		t.Error("Untracked release should not affect pooled handles")
	}
	p.Release(h)
}

func TestPoolReleaseNil(t *testing.T) {
	p := newTestPool(t, &mockFactory{}, DefaultConfig())

	if err := p.Release(nil); !errors.Is(err, ErrHandleRequired) {
		t.Errorf("Expected ErrHandleRequired, got %v", err)
	}
	if err := p.Discard(nil); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestPoolDuplicateHandle(t *testing.T) {
	id := uuid.New()
	f := &mockFactory{fixedID: id}
	p := newTestPool(t, f, DefaultConfig())

	h := acquire(t, p, "example.com")

	func() {
		defer func() {
			r := recover()
			dup, ok := r.(*DuplicateHandleError)
			if !ok {
				t.Fatalf("Expected *DuplicateHandleError panic, got %v", r)
			}
			if dup.ID != id {
				t.Errorf("Expected duplicate ID %s, got %s", id, dup.ID)
			}
			if !errors.Is(dup, apperrors.ErrInvalidState) {
				t.Error("Expected DuplicateHandleError to be an invalid state")
			}
		}()
		p.Acquire(context.Background(), "example.com", 80, transport.Options{})
	}()

	// The pool stays usable after the panic.
	if err := p.Release(h); err != nil {
		t.Errorf("Release after panic failed: %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", p.Len())
	}
}

func TestPoolFactoryError(t *testing.T) {
	f := &mockFactory{err: errors.New("connection failed")}
	p := newTestPool(t, f, DefaultConfig())

	_, err := p.Acquire(context.Background(), "example.com", 80, transport.Options{})
	if err == nil || err.Error() != "connection failed" {
		t.Errorf("Expected factory error, got %v", err)
	}

	stats := p.Stats()
	if stats.Entries != 0 {
		t.Errorf("Expected 0 entries after failed create, got %d", stats.Entries)
	}
	if stats.AcquireFailed != 1 {
		t.Errorf("Expected 1 acquire failure, got %d", stats.AcquireFailed)
	}
}

func TestPoolEvictionCloseErrors(t *testing.T) {
	f := &mockFactory{closeErr: errors.New("close failed")}
	cfg := DefaultConfig()
	cfg.UsageLimit = 1

	p := newTestPool(t, f, cfg)

	h := acquire(t, p, "example.com")
	if err := p.Release(h); err != nil {
		t.Errorf("Expected close errors during eviction to be swallowed, got %v", err)
	}
	if !h.(*mockConn).IsClosed() {
		t.Error("Expected handle to be closed")
	}
}

func TestPoolClose(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 3

	p := New(f, cfg)

	h1 := acquire(t, p, "example.com")
	h2 := acquire(t, p, "example.com")
	busy := acquire(t, p, "example.com")
	p.Release(h1)
	p.Release(h2)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !h1.(*mockConn).IsClosed() || !h2.(*mockConn).IsClosed() {
		t.Error("Idle handles should be closed")
	}
	if busy.(*mockConn).IsClosed() {
		t.Error("Acquired handle should stay open until released")
	}

	// Acquire after close should fail
	_, err := p.Acquire(context.Background(), "example.com", 80, transport.Options{})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}

	p.Release(busy)
	if !busy.(*mockConn).IsClosed() {
		t.Error("Handle released after close should be closed")
	}
	if p.Len() != 0 {
		t.Errorf("Expected empty pool, got %d entries", p.Len())
	}

	// Double close should return error
	if err := p.Close(); err != ErrPoolClosed {
		t.Errorf("Expected ErrPoolClosed on double close, got %v", err)
	}
}

func TestPoolCloseWakesWaiters(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 1
	cfg.AcquireTimeout = 4 * time.Second

	p := New(f, cfg)
	h := acquire(t, p, "example.com")

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), "example.com", 80, transport.Options{})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("Expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiter was not woken by Close")
	}
	p.Release(h)
}

func TestPoolContextCancellation(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.Capacity = 1

	p := newTestPool(t, f, cfg)

	// Acquire the only handle
	h := acquire(t, p, "example.com")

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var acquireErr error
	go func() {
		defer wg.Done()
		_, acquireErr = p.Acquire(ctx, "example.com", 80, transport.Options{})
	}()

	// Give the goroutine time to start waiting
	time.Sleep(20 * time.Millisecond)
	cancel()

	wg.Wait()

	if !errors.Is(acquireErr, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", acquireErr)
	}

	p.Release(h)
}

func TestPoolBackgroundSweep(t *testing.T) {
	f := &mockFactory{}
	cfg := DefaultConfig()
	cfg.IdleTTL = 30 * time.Millisecond
	cfg.SweepInterval = 20 * time.Millisecond

	p := New(f, cfg)

	h := acquire(t, p, "example.com")
	p.Release(h)

	time.Sleep(150 * time.Millisecond)

	if !h.(*mockConn).IsClosed() {
		t.Error("Idle handle should be closed by the background sweep")
	}
	if p.Len() != 0 {
		t.Errorf("Expected 0 entries, got %d", p.Len())
	}

	p.Close()
}

func TestPoolFingerprintDiscrimination(t *testing.T) {
	f := &mockFactory{}
	p := newTestPool(t, f, DefaultConfig())

	certA, keyA, err := testutil.NewClientCertificate(1)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	certB, keyB, err := testutil.NewClientCertificate(2)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	optsA := transport.Options{UseTLS: true, Certificate: certA, Key: keyA}
	optsB := transport.Options{UseTLS: true, Certificate: certB, Key: keyB}

	hA, err := p.Acquire(context.Background(), "example.com", 443, optsA)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	p.Release(hA)

	hB, err := p.Acquire(context.Background(), "example.com", 443, optsB)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if hB == hA {
		t.Error("Expected a different client certificate to get a different handle")
	}
	p.Release(hB)

	again, err := p.Acquire(context.Background(), "example.com", 443, optsA)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if again != hA {
		t.Error("Expected the same client certificate to reuse its handle")
	}
	p.Release(again)
}

func TestPoolEvictsClosedPeer(t *testing.T) {
	srv, err := testutil.NewTCPServer()
	if err != nil {
		t.Fatalf("Failed to start TCP server: %v", err)
	}
	defer srv.Close()

	p := newTestPool(t, nil, DefaultConfig())
	ctx := context.Background()

	h1, err := p.Acquire(ctx, srv.Host(), srv.Port(), transport.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	conn := h1.(*transport.Conn)
	if err := conn.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Release(h1)

	h2, err := p.Acquire(ctx, srv.Host(), srv.Port(), transport.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if h2 != h1 {
		t.Error("Expected the live connection to be reused")
	}
	p.Release(h2)

	srv.CloseConns()
	time.Sleep(50 * time.Millisecond)

	h3, err := p.Acquire(ctx, srv.Host(), srv.Port(), transport.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if h3 == h1 {
		t.Error("Expected a connection closed by the peer to be replaced")
	}
	if h1.Healthy() {
		t.Error("Expected the evicted connection to be closed")
	}
	p.Release(h3)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10 {
		t.Errorf("Expected default Capacity 10, got %d", cfg.Capacity)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("Expected default TTL 10s, got %v", cfg.TTL)
	}
	if cfg.IdleTTL != 5*time.Second {
		t.Errorf("Expected default IdleTTL 5s, got %v", cfg.IdleTTL)
	}
	if cfg.AcquireTimeout != 5*time.Second {
		t.Errorf("Expected default AcquireTimeout 5s, got %v", cfg.AcquireTimeout)
	}
	if cfg.UsageLimit != 100 {
		t.Errorf("Expected default UsageLimit 100, got %d", cfg.UsageLimit)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("Expected background sweep disabled by default, got %v", cfg.SweepInterval)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	p := New(nil, Config{})
	defer p.Close()

	if p.Config() != DefaultConfig() {
		t.Errorf("Expected zero config to take defaults, got %+v", p.Config())
	}
}

func TestUpdateMetrics(t *testing.T) {
	stats := Stats{
		Capacity: 10,
		Entries:  5,
		Idle:     3,
		InUse:    2,
	}

	UpdateMetrics(stats)

	if PoolCapacity.Value() != 10 {
		t.Errorf("Expected PoolCapacity 10, got %d", PoolCapacity.Value())
	}
	if PoolConnections.Value() != 5 {
		t.Errorf("Expected PoolConnections 5, got %d", PoolConnections.Value())
	}
	if PoolConnectionsIdle.Value() != 3 {
		t.Errorf("Expected PoolConnectionsIdle 3, got %d", PoolConnectionsIdle.Value())
	}
	if PoolConnectionsInUse.Value() != 2 {
		t.Errorf("Expected PoolConnectionsInUse 2, got %d", PoolConnectionsInUse.Value())
	}
}

func TestTransportFactoryRejectsInvalidDestination(t *testing.T) {
	p := New(nil, DefaultConfig())
	defer p.Close()
	ctx := context.Background()

	tests := []struct {
		name string
		host string
		port int
	}{
		{"empty host", "", 80},
		{"port zero", "127.0.0.1", 0},
		{"port too high", "127.0.0.1", 65536},
		{"host with port", "127.0.0.1:80", 80},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Acquire(ctx, tc.host, tc.port, transport.Options{})
			if !errors.Is(err, apperrors.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}

	if p.Len() != 0 {
		t.Errorf("Expected no entries after failed creates, got %d", p.Len())
	}
}
