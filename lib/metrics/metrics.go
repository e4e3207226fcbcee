// Package metrics provides lightweight metrics collection for minthttp.
// Metrics are exposed in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLatencyBuckets are histogram buckets, in seconds, suited to
// connection acquisition and request round trips.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// writeHeader writes the HELP and TYPE lines shared by every metric kind.
func writeHeader(sb *strings.Builder, name, help, kind string) {
	fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", name, kind)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value uint64
	name  string
	help  string
}

// NewCounter creates a counter and registers it with the default registry.
func NewCounter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	defaultRegistry.register(name, c)
	return c
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(v uint64) {
	atomic.AddUint64(&c.value, v)
}

// Value returns the current counter value.
func (c *Counter) Value() uint64 {
	return atomic.LoadUint64(&c.value)
}

func (c *Counter) prometheus() string {
	var sb strings.Builder
	writeHeader(&sb, c.name, c.help, "counter")
	fmt.Fprintf(&sb, "%s %d\n", c.name, c.Value())
	return sb.String()
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	value int64
	name  string
	help  string
}

// NewGauge creates a gauge and registers it with the default registry.
func NewGauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	defaultRegistry.register(name, g)
	return g
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) {
	atomic.StoreInt64(&g.value, v)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	atomic.AddInt64(&g.value, 1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	atomic.AddInt64(&g.value, -1)
}

// Add adds the given value to the gauge.
func (g *Gauge) Add(v int64) {
	atomic.AddInt64(&g.value, v)
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return atomic.LoadInt64(&g.value)
}

func (g *Gauge) prometheus() string {
	var sb strings.Builder
	writeHeader(&sb, g.name, g.help, "gauge")
	fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
	return sb.String()
}

// Histogram tracks the distribution of observed values.
// Bucket counts are cumulative, as in the Prometheus format.
type Histogram struct {
	mu      sync.Mutex
	name    string
	help    string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// NewHistogram creates a histogram and registers it with the default registry.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	h := &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	defaultRegistry.register(name, h)
	return h
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of all observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

func (h *Histogram) prometheus() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var sb strings.Builder
	writeHeader(&sb, h.name, h.help, "histogram")
	for i, b := range h.buckets {
		fmt.Fprintf(&sb, "%s_bucket{le=\"%g\"} %d\n", h.name, b, h.counts[i])
	}
	fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(&sb, "%s_sum %g\n", h.name, h.sum)
	fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
	return sb.String()
}

// Timer measures an elapsed duration into a histogram, in seconds.
type Timer struct {
	h     *Histogram
	start time.Time
}

// NewTimer starts a timer for the given histogram.
func NewTimer(h *Histogram) *Timer {
	return &Timer{h: h, start: time.Now()}
}

// ObserveDuration records the time elapsed since the timer started and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.h != nil {
		t.h.Observe(d.Seconds())
	}
	return d
}

// metric is the interface for all metric types.
type metric interface {
	prometheus() string
}

// Registry holds registered metrics by name.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]metric
}

// defaultRegistry is the global metric registry.
var defaultRegistry = &Registry{
	metrics: make(map[string]metric),
}

func (r *Registry) register(name string, m metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[name] = m
}

// Expose returns all metrics in Prometheus exposition format, sorted by name.
func (r *Registry) Expose() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(r.metrics[name].prometheus())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Expose returns the default registry in Prometheus exposition format.
func Expose() string {
	return defaultRegistry.Expose()
}

// Handler returns an http.Handler that exposes metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(defaultRegistry.Expose()))
	})
}

// Request metrics shared by the HTTP toolkit.
var (
	RequestsTotal      = NewCounter("minthttp_requests_total", "Total HTTP requests sent")
	RequestErrorsTotal = NewCounter("minthttp_request_errors_total", "Total HTTP requests that failed before a response was read")
	ResponsesClientErr = NewCounter("minthttp_responses_client_error_total", "Total responses with a 4xx status")
	ResponsesServerErr = NewCounter("minthttp_responses_server_error_total", "Total responses with a 5xx status")
	ConnectionsDialed  = NewCounter("minthttp_connections_dialed_total", "Total outbound connections dialed")
	ConnectionsReused  = NewCounter("minthttp_connections_reused_total", "Total requests served on a reused connection")
	RequestDuration    = NewHistogram("minthttp_request_duration_seconds", "Round trip time of HTTP requests", DefaultLatencyBuckets)
	ConnectDuration    = NewHistogram("minthttp_connect_duration_seconds", "Time spent establishing connections", DefaultLatencyBuckets)
	ProbeFailuresTotal = NewCounter("minthttp_probe_failures_total", "Total idle connections that failed the liveness probe")
)
