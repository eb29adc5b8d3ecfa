// Package metrics provides lightweight metrics collection for connpool.
// Metrics register themselves in a process-wide registry at creation and
// are served in Prometheus exposition format via Handler.
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

// Counter is a monotonically increasing value, safe for concurrent use.
type Counter struct {
	value atomic.Uint64
	name  string
	help  string
}

// NewCounter creates and registers a counter metric.
func NewCounter(name, help string) *Counter {
	c := &Counter{
		name: name,
		help: help,
	}
	defaultRegistry.register(c)
	return c
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

// Value returns the current counter value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

func (c *Counter) metricName() string { return c.name }

func (c *Counter) prometheus() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(&b, "# TYPE %s counter\n", c.name)
	fmt.Fprintf(&b, "%s %d\n", c.name, c.Value())
	return b.String()
}

// Gauge is a value that can move in both directions, safe for
// concurrent use.
type Gauge struct {
	value atomic.Int64
	name  string
	help  string
}

// NewGauge creates and registers a gauge metric.
func NewGauge(name, help string) *Gauge {
	g := &Gauge{
		name: name,
		help: help,
	}
	defaultRegistry.register(g)
	return g
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) {
	g.value.Store(v)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.value.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.value.Add(-1)
}

// Add adds the given value to the gauge.
func (g *Gauge) Add(v int64) {
	g.value.Add(v)
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

func (g *Gauge) metricName() string { return g.name }

func (g *Gauge) prometheus() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# HELP %s %s\n", g.name, g.help)
	fmt.Fprintf(&b, "# TYPE %s gauge\n", g.name)
	fmt.Fprintf(&b, "%s %d\n", g.name, g.Value())
	return b.String()
}

// Histogram tracks the distribution of observed values across fixed
// buckets. Bucket boundaries are upper bounds, matching Prometheus "le"
// semantics.
type Histogram struct {
	mu      sync.Mutex
	name    string
	help    string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// NewHistogram creates and registers a histogram metric. The bucket
// boundaries are copied and sorted.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	bs := make([]float64, len(buckets))
	copy(bs, buckets)
	sort.Float64s(bs)

	h := &Histogram{
		name:    name,
		help:    help,
		buckets: bs,
		counts:  make([]uint64, len(bs)),
	}
	defaultRegistry.register(h)
	return h
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	// Count only the first bucket the value fits in; exposition
	// accumulates the running totals Prometheus expects.
	if i := sort.SearchFloat64s(h.buckets, v); i < len(h.counts) {
		h.counts[i]++
	}
}

func (h *Histogram) metricName() string { return h.name }

func (h *Histogram) prometheus() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(&b, "# TYPE %s histogram\n", h.name)

	var cumulative uint64
	for i, le := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(&b, "%s_bucket{le=\"%g\"} %d\n", h.name, le, cumulative)
	}
	fmt.Fprintf(&b, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(&b, "%s_sum %g\n", h.name, h.sum)
	fmt.Fprintf(&b, "%s_count %d\n", h.name, h.count)
	return b.String()
}

// metric is implemented by every metric type the registry can hold.
type metric interface {
	metricName() string
	prometheus() string
}

// Registry holds registered metrics keyed by name.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]metric
}

// defaultRegistry is the process-wide metric registry.
var defaultRegistry = &Registry{
	metrics: make(map[string]metric),
}

func (r *Registry) register(m metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[m.metricName()] = m
}

// Expose returns all metrics in Prometheus exposition format, sorted by
// name for stable output.
func (r *Registry) Expose() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(r.metrics[name].prometheus())
		b.WriteString("\n")
	}
	return b.String()
}

// Handler returns an http.Handler that serves the registry in Prometheus
// exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(defaultRegistry.Expose()))
	})
}

// DefaultLatencyBuckets covers latencies from one millisecond to ten
// seconds, suitable for acquire and write timing.
var DefaultLatencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Timer measures a duration and records it in a histogram.
type Timer struct {
	h     *Histogram
	start time.Time
}

// NewTimer starts a timer that records into h when ObserveDuration
// is called.
func NewTimer(h *Histogram) *Timer {
	return &Timer{
		h:     h,
		start: time.Now(),
	}
}

// ObserveDuration records the elapsed time in seconds and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.h != nil {
		t.h.Observe(d.Seconds())
	}
	return d
}

// StartTime is the Unix timestamp of process start, recorded when the
// simulator launches.
var StartTime = NewGauge("connpool_start_time_seconds", "Unix timestamp when the process started")

// RecordStartTime stamps StartTime with the current time.
func RecordStartTime() {
	StartTime.Set(time.Now().Unix())
}
