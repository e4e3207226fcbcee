package pool

import "time"

// entry tracks one pooled handle.
//
// An entry moves from available to acquired and back until it expires or
// turns unhealthy; unhealthy is permanent. It is removed by a sweep only
// while not acquired.
type entry struct {
	handle    Handle
	namespace string
	acquired  bool
	birth     time.Time
	lastUsed  time.Time
	usage     int
	unhealthy bool
}

func newEntry(h Handle, namespace string, now time.Time) *entry {
	return &entry{
		handle:    h,
		namespace: namespace,
		birth:     now,
		lastUsed:  now,
	}
}

func (e *entry) ttlReached(now time.Time, cfg Config) bool {
	return now.Sub(e.birth) > cfg.TTL
}

func (e *entry) idleTTLReached(now time.Time, cfg Config) bool {
	return now.Sub(e.lastUsed) > cfg.IdleTTL
}

func (e *entry) usageReached(cfg Config) bool {
	return e.usage >= cfg.UsageLimit
}

func (e *entry) expired(now time.Time, cfg Config) bool {
	return e.idleTTLReached(now, cfg) || e.ttlReached(now, cfg) || e.usageReached(cfg)
}

func (e *entry) available(now time.Time, cfg Config) bool {
	return !e.acquired && !e.expired(now, cfg) && !e.unhealthy
}

func (e *entry) toClean(now time.Time, cfg Config) bool {
	return (e.expired(now, cfg) || e.unhealthy) && !e.acquired
}

func (e *entry) acquire(now time.Time) {
	e.acquired = true
	if now.After(e.lastUsed) {
		e.lastUsed = now
	}
	e.usage++
}

func (e *entry) release() {
	e.acquired = false
}

// healthy probes the handle. A failed probe marks the entry unhealthy for good.
func (e *entry) healthy() bool {
	if e.unhealthy {
		return false
	}
	if !e.handle.Healthy() {
		e.unhealthy = true
	}
	return !e.unhealthy
}

func (e *entry) markUnhealthy() {
	e.unhealthy = true
}
