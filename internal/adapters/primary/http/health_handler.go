package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// RelayStats exposes the relay state reported by health checks.
type RelayStats interface {
	RoomCount() int
}

// BridgeStatus reports whether the internal bridge listener is accepting
// connections.
type BridgeStatus interface {
	Addr() string
	Serving() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	stats     RelayStats
	bridge    BridgeStatus
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(stats RelayStats, bridge BridgeStatus, version string) *HealthHandler {
	return &HealthHandler{
		stats:     stats,
		bridge:    bridge,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleLiveness handles liveness probe requests (is the service running?)
// Used by Kubernetes to know when to restart a container
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// HandleReadiness handles readiness probe requests (can the service accept traffic?)
// The relay is ready once the bridge listener is bound.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]Check)
	overallStatus := "healthy"

	bridgeCheck := h.checkBridge()
	checks["bridge"] = bridgeCheck
	if bridgeCheck.Status != "healthy" {
		overallStatus = "unhealthy"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// HandleHealth handles detailed health check requests (for monitoring/debugging)
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]Check)
	overallStatus := "healthy"

	bridgeCheck := h.checkBridge()
	checks["bridge"] = bridgeCheck
	if bridgeCheck.Status != "healthy" {
		overallStatus = "degraded"
	}

	// Add memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := struct {
		HealthResponse
		ActiveRooms int `json:"active_rooms"`
		Goroutines  int `json:"goroutines"`
		Memory      struct {
			Alloc      uint64 `json:"alloc_bytes"`
			TotalAlloc uint64 `json:"total_alloc_bytes"`
			Sys        uint64 `json:"sys_bytes"`
			NumGC      uint32 `json:"num_gc"`
		} `json:"memory"`
	}{
		HealthResponse: HealthResponse{
			Status:    overallStatus,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.version,
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			Checks:    checks,
		},
		ActiveRooms: h.stats.RoomCount(),
		Goroutines:  runtime.NumGoroutine(),
	}
	response.Memory.Alloc = memStats.Alloc
	response.Memory.TotalAlloc = memStats.TotalAlloc
	response.Memory.Sys = memStats.Sys
	response.Memory.NumGC = memStats.NumGC

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// checkBridge checks the internal bridge listener
func (h *HealthHandler) checkBridge() Check {
	if h.bridge == nil {
		return Check{
			Status:  "unhealthy",
			Message: "Bridge not configured",
		}
	}

	if !h.bridge.Serving() {
		return Check{
			Status:  "unhealthy",
			Message: "Bridge listener is not accepting connections",
		}
	}

	return Check{
		Status:  "healthy",
		Message: fmt.Sprintf("listening on %s", h.bridge.Addr()),
	}
}
