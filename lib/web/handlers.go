package web

import (
	"fmt"
	"net/http"
	"time"
)

// StatsResponse is the payload of the /api/stats endpoint.
type StatsResponse struct {
	Capacity       int    `json:"capacity"`
	Alive          int    `json:"alive"`
	Idle           int    `json:"idle"`
	InUse          int    `json:"in_use"`
	AcquireCount   uint64 `json:"acquire_count"`
	AcquireSuccess uint64 `json:"acquire_success"`
	AcquireFailed  uint64 `json:"acquire_failed"`
	ReleaseCount   uint64 `json:"release_count"`
	MisuseCount    uint64 `json:"misuse_count"`
}

// HealthResponse is the payload of the /api/health endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// handleAPIStats returns a snapshot of pool statistics.
func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Capacity:       stats.Capacity,
		Alive:          stats.Alive,
		Idle:           stats.Idle,
		InUse:          stats.InUse,
		AcquireCount:   stats.AcquireCount,
		AcquireSuccess: stats.AcquireSuccess,
		AcquireFailed:  stats.AcquireFailed,
		ReleaseCount:   stats.ReleaseCount,
		MisuseCount:    stats.MisuseCount,
	})
}

// handleAPIHealth returns the health status of the pool.
func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	overallStatus := "healthy"

	s.checkPool(checks, &overallStatus)
	s.checkAccounting(checks, &overallStatus)

	resp := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	httpStatus := http.StatusOK
	if overallStatus != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	s.writeJSON(w, httpStatus, resp)
}

// checkPool verifies the pool is open and its counts are consistent.
func (s *Server) checkPool(checks map[string]string, overallStatus *string) {
	if s.pool.Closed() {
		checks["pool"] = "unhealthy: pool closed"
		*overallStatus = "unhealthy"
		return
	}

	stats := s.pool.Stats()
	if stats.InUse+stats.Idle != stats.Alive || stats.Alive > stats.Capacity {
		checks["pool"] = fmt.Sprintf("unhealthy: inconsistent counts (in_use=%d idle=%d alive=%d)",
			stats.InUse, stats.Idle, stats.Alive)
		*overallStatus = "unhealthy"
		return
	}

	checks["pool"] = "healthy"
}

// checkAccounting reports the monitor's verdict when a reporter is attached.
func (s *Server) checkAccounting(checks map[string]string, overallStatus *string) {
	if s.reporter == nil {
		return
	}

	if v := s.reporter.Violations(); v > 0 {
		checks["accounting"] = fmt.Sprintf("unhealthy: %d inconsistent samples", v)
		*overallStatus = "unhealthy"
		return
	}
	checks["accounting"] = "healthy"
}

// handleAPILiveness returns a simple liveness probe response.
// This is a lightweight check that the server is responding.
func (s *Server) handleAPILiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// handleAPIReadiness returns a readiness probe response.
// This checks if the pool is still accepting acquires.
func (s *Server) handleAPIReadiness(w http.ResponseWriter, r *http.Request) {
	if s.pool.Closed() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "pool_closed",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
