// Package ratelimit paces outgoing requests with token buckets, one bucket
// per destination.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

// Limiter is a token bucket rate limiter.
type Limiter struct {
	mu       sync.Mutex
	rate     float64   // tokens per second
	capacity float64   // max tokens
	tokens   float64   // current tokens
	lastTime time.Time // last refill time
	now      func() time.Time
}

// New creates a new rate limiter.
// rate is tokens per second, capacity is the maximum burst size.
func New(rate float64, capacity int) *Limiter {
	return newLimiter(rate, capacity, time.Now)
}

func newLimiter(rate float64, capacity int, now func() time.Time) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		rate:     rate,
		capacity: float64(capacity),
		tokens:   float64(capacity),
		lastTime: now(),
		now:      now,
	}
}

// Allow returns true if a request is allowed, consuming one token.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
// A limiter with a non-positive rate never refills; Wait then fails once
// the burst is spent.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		delay := l.reserve()
		if delay == 0 {
			return nil
		}
		if delay < 0 {
			return fmt.Errorf("rate limit exhausted: %w", apperrors.ErrInvalidState)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token and returns 0, or returns how long until one is
// available. It returns -1 when no token will ever arrive.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	if l.rate <= 0 {
		return -1
	}
	missing := 1 - l.tokens
	return max(time.Duration(missing/l.rate*float64(time.Second)), time.Millisecond)
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastTime).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastTime = now
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// full reports whether the bucket has refilled completely.
func (l *Limiter) full() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens >= l.capacity
}

// KeyedLimiter keeps one Limiter per destination key, such as "host:port".
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rate     float64
	capacity int
	cleanup  time.Duration // how often full buckets are dropped
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKeyed creates a per-key rate limiter. A positive cleanup starts a
// goroutine that drops full buckets; call Close to stop it.
func NewKeyed(rate float64, capacity int, cleanup time.Duration) *KeyedLimiter {
	kl := &KeyedLimiter{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		capacity: capacity,
		cleanup:  cleanup,
		stopCh:   make(chan struct{}),
	}
	if cleanup > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

// Close stops the cleanup goroutine.
func (kl *KeyedLimiter) Close() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}

func (kl *KeyedLimiter) limiter(key string) *Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	limiter, ok := kl.limiters[key]
	if !ok {
		limiter = New(kl.rate, kl.capacity)
		kl.limiters[key] = limiter
	}
	return limiter
}

// Allow checks if a request for the given key is allowed.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.limiter(key).Allow()
}

// Wait blocks until a request for key may proceed or ctx is done.
func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	start := time.Now()
	if err := kl.limiter(key).Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		log.WithField("key", key).WithField("waited", waited).Debug("Request delayed by rate limit")
	}
	return nil
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// prune removes buckets that are full again.
func (kl *KeyedLimiter) prune() {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, limiter := range kl.limiters {
		if limiter.full() {
			delete(kl.limiters, key)
		}
	}
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.prune()
		}
	}
}
