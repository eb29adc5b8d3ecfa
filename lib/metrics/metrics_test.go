package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// swapRegistry replaces the default registry with a fresh one for the
// duration of a test, so constructor tests do not pollute the process-wide
// registry shared by the rest of the suite.
func swapRegistry(t *testing.T) {
	t.Helper()
	old := defaultRegistry
	defaultRegistry = &Registry{metrics: make(map[string]metric)}
	t.Cleanup(func() { defaultRegistry = old })
}

func TestCounter(t *testing.T) {
	// Construct directly to stay out of the default registry.
	c := &Counter{name: "test_counter", help: "A test counter"}

	if c.Value() != 0 {
		t.Errorf("initial value = %d, want 0", c.Value())
	}
	c.Inc()
	c.Add(5)
	if c.Value() != 6 {
		t.Errorf("after Inc and Add(5) = %d, want 6", c.Value())
	}
}

func TestCounterConcurrent(t *testing.T) {
	c := &Counter{name: "test_counter", help: "A test counter"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if c.Value() != 8000 {
		t.Errorf("concurrent increments = %d, want 8000", c.Value())
	}
}

func TestGauge(t *testing.T) {
	g := &Gauge{name: "test_gauge", help: "A test gauge"}

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(-5)
	if g.Value() != 5 {
		t.Errorf("after Set/Inc/Dec/Add = %d, want 5", g.Value())
	}
}

func TestPrometheusText(t *testing.T) {
	c := &Counter{name: "test_counter", help: "A test counter"}
	c.Add(42)
	g := &Gauge{name: "test_gauge", help: "A test gauge"}
	g.Set(-7)

	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "counter",
			output: c.prometheus(),
			want: []string{
				"# HELP test_counter A test counter",
				"# TYPE test_counter counter",
				"test_counter 42",
			},
		},
		{
			name:   "gauge",
			output: g.prometheus(),
			want: []string{
				"# HELP test_gauge A test gauge",
				"# TYPE test_gauge gauge",
				"test_gauge -7",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, line := range tt.want {
				if !strings.Contains(tt.output, line) {
					t.Errorf("missing %q in output:\n%s", line, tt.output)
				}
			}
		})
	}
}

func TestHistogramExposition(t *testing.T) {
	h := &Histogram{
		name:    "test_histogram",
		help:    "A test histogram",
		buckets: []float64{0.1, 0.5, 1.0, 5.0},
		counts:  make([]uint64, 4),
	}

	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(0.8)
	h.Observe(3.0)
	h.Observe(10.0) // beyond the last bucket, lands only in +Inf

	output := h.prometheus()

	// Bucket counts are cumulative in the exposition format.
	want := []string{
		`test_histogram_bucket{le="0.1"} 1`,
		`test_histogram_bucket{le="0.5"} 2`,
		`test_histogram_bucket{le="1"} 3`,
		`test_histogram_bucket{le="5"} 4`,
		`test_histogram_bucket{le="+Inf"} 5`,
		"test_histogram_count 5",
	}
	for _, line := range want {
		if !strings.Contains(output, line) {
			t.Errorf("missing %q in output:\n%s", line, output)
		}
	}
}

func TestHistogramBoundaryIsInclusive(t *testing.T) {
	h := &Histogram{
		name:    "test_histogram",
		help:    "A test histogram",
		buckets: []float64{0.5, 1.0},
		counts:  make([]uint64, 2),
	}

	h.Observe(0.5)

	output := h.prometheus()
	if !strings.Contains(output, `test_histogram_bucket{le="0.5"} 1`) {
		t.Errorf("value equal to the boundary should count in that bucket:\n%s", output)
	}
}

func TestNewHistogramSortsBuckets(t *testing.T) {
	swapRegistry(t)

	h := NewHistogram("sorted_histogram", "Buckets given out of order", []float64{1.0, 0.1, 0.5})
	h.Observe(0.05)

	output := h.prometheus()
	first := strings.Index(output, `le="0.1"`)
	last := strings.Index(output, `le="1"`)
	if first == -1 || last == -1 || first > last {
		t.Errorf("expected ascending bucket order in output:\n%s", output)
	}
	if !strings.Contains(output, `sorted_histogram_bucket{le="0.1"} 1`) {
		t.Errorf("smallest bucket should hold the observation:\n%s", output)
	}
}

func TestRegistryExposeSortedByName(t *testing.T) {
	r := &Registry{metrics: make(map[string]metric)}

	z := &Counter{name: "z_metric", help: "Last"}
	a := &Gauge{name: "a_metric", help: "First"}
	r.register(z)
	r.register(a)

	z.Inc()
	a.Set(42)

	output := r.Expose()
	if !strings.Contains(output, "z_metric 1") || !strings.Contains(output, "a_metric 42") {
		t.Fatalf("missing metrics in output:\n%s", output)
	}
	if strings.Index(output, "a_metric") > strings.Index(output, "z_metric") {
		t.Errorf("expected name-sorted output:\n%s", output)
	}
}

func TestHandler(t *testing.T) {
	swapRegistry(t)

	c := NewCounter("handler_test_counter", "Test counter")
	c.Add(100)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "handler_test_counter 100") {
		t.Errorf("missing counter in body: %s", body)
	}
}

func TestTimer(t *testing.T) {
	h := &Histogram{
		name:    "timer_histogram",
		help:    "A timer histogram",
		buckets: []float64{0.1, 1.0},
		counts:  make([]uint64, 2),
	}

	timer := NewTimer(h)
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveDuration()

	if d <= 0 {
		t.Errorf("duration = %v, want > 0", d)
	}

	h.mu.Lock()
	count := h.count
	h.mu.Unlock()
	if count != 1 {
		t.Errorf("observation count = %d, want 1", count)
	}
}

func TestTimerNilHistogram(t *testing.T) {
	timer := NewTimer(nil)

	// Should not panic
	if d := timer.ObserveDuration(); d < 0 {
		t.Errorf("duration = %v, want >= 0", d)
	}
}

func TestDefaultLatencyBuckets(t *testing.T) {
	if len(DefaultLatencyBuckets) == 0 {
		t.Fatal("DefaultLatencyBuckets should not be empty")
	}
	for i := 1; i < len(DefaultLatencyBuckets); i++ {
		if DefaultLatencyBuckets[i] <= DefaultLatencyBuckets[i-1] {
			t.Errorf("buckets not ascending at index %d: %g after %g",
				i, DefaultLatencyBuckets[i], DefaultLatencyBuckets[i-1])
		}
	}
}

func TestRecordStartTime(t *testing.T) {
	RecordStartTime()

	if StartTime.Value() == 0 {
		t.Error("StartTime should be non-zero after RecordStartTime()")
	}
}
