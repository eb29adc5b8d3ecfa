package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-i2p/connpool/lib/pool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, capacity int) *pool.Pool {
	t.Helper()
	factory := func(ctx context.Context, id uint64) (pool.Resource, error) {
		return id, nil
	}
	p, err := pool.New(factory, pool.Config{Capacity: capacity})
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	return p
}

func TestNewRequiresPool(t *testing.T) {
	if _, err := New(Config{ListenAddr: "127.0.0.1:0"}); err == nil {
		t.Error("expected error for missing pool")
	}
}

func TestWriteJSON(t *testing.T) {
	s := &Server{logger: testLogger()}

	w := httptest.NewRecorder()
	data := map[string]string{"message": "hello"}

	s.writeJSON(w, http.StatusOK, data)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result["message"] != "hello" {
		t.Errorf("message = %q, want %q", result["message"], "hello")
	}
}

func TestHandleAPIStats(t *testing.T) {
	p := newTestPool(t, 2)
	defer p.Close()

	lease, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(lease)

	s := &Server{pool: p, logger: testLogger()}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/stats", nil)
	s.handleAPIStats(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Capacity != 2 {
		t.Errorf("Capacity = %d, want %d", resp.Capacity, 2)
	}
	if resp.InUse != 1 {
		t.Errorf("InUse = %d, want %d", resp.InUse, 1)
	}
	if resp.Alive != 1 {
		t.Errorf("Alive = %d, want %d", resp.Alive, 1)
	}
}

func TestHandleAPIHealth(t *testing.T) {
	p := newTestPool(t, 2)
	s := &Server{pool: p, logger: testLogger()}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/health", nil)
	s.handleAPIHealth(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %q, want %q", resp.Status, "healthy")
	}
	if resp.Checks["pool"] != "healthy" {
		t.Errorf("pool check = %q, want %q", resp.Checks["pool"], "healthy")
	}
}

func TestHandleAPIHealthClosedPool(t *testing.T) {
	p := newTestPool(t, 2)
	p.Close()

	s := &Server{pool: p, logger: testLogger()}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/health", nil)
	s.handleAPIHealth(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("Status = %q, want %q", resp.Status, "unhealthy")
	}
	if !strings.Contains(resp.Checks["pool"], "closed") {
		t.Errorf("pool check = %q, want mention of closed pool", resp.Checks["pool"])
	}
}

func TestHandleAPILiveness(t *testing.T) {
	s := &Server{logger: testLogger()}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/healthz", nil)
	s.handleAPILiveness(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "alive" {
		t.Errorf("status = %q, want %q", resp["status"], "alive")
	}
}

func TestHandleAPIReadiness(t *testing.T) {
	p := newTestPool(t, 1)
	s := &Server{pool: p, logger: testLogger()}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/readyz", nil)
	s.handleAPIReadiness(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	p.Close()

	w = httptest.NewRecorder()
	s.handleAPIReadiness(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestServerStartStop(t *testing.T) {
	p := newTestPool(t, 2)
	defer p.Close()

	s, err := New(Config{
		ListenAddr: "127.0.0.1:0",
		Pool:       p,
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("expected error on second Start")
	}

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(string(body), "connpool_") {
		t.Error("expected connpool metrics in exposition")
	}

	resp, err = http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Stopping again is a no-op.
	if err := s.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
