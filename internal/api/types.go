package api

import (
	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/store"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State         string `json:"state"` // healthy | degraded | unknown
	Machine       string `json:"machine"`
	LogCount      int    `json:"log_count"`
	HealthyCount  int    `json:"healthy_count"`
	DegradedCount int    `json:"degraded_count"`
	EventCount    int    `json:"event_count"`
}

// LogResponse is one entry in GET /api/v1/logs or GET /api/v1/logs/{name}.
type LogResponse struct {
	Log           string                    `json:"log"`
	Path          string                    `json:"path"`
	State         string                    `json:"state"`
	States        map[string]detector.State `json:"states"`
	Plots         int                       `json:"plots"`
	ScanDuration  float64                   `json:"scan_duration_seconds"`
	LastHeartbeat *detector.Heartbeat       `json:"last_heartbeat,omitempty"`
	Errors        int                       `json:"errors"`
	DriveErrors   int                       `json:"drive_errors"`
	Skipped       int                       `json:"skipped_signage_points"`
	Events        int                       `json:"events"`
	Diagnostics   []DiagnosticHint          `json:"diagnostics"`
	UpdatedAt     string                    `json:"updated_at,omitempty"` // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	Machine     string         `json:"machine"`
	Logs        []LogResponse  `json:"logs"`
	Events      []store.Record `json:"events"`
	GeneratedAt string         `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
