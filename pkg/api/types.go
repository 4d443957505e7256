// Package api implements the HTTP REST API and Prometheus metrics
// endpoint of the configuration daemon.
package api

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse holds daemon status information.
type StatusResponse struct {
	Uptime       string         `json:"uptime"`
	BackendLive  bool           `json:"backend_live"`
	SnapshotDepth int           `json:"snapshot_depth"`
	Objects      map[string]int `json:"objects"`
	SavePath     string         `json:"save_path"`
}

// ConfigRequest is the body of config mutations.
type ConfigRequest struct {
	Text    string `json:"text,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// ApplyRequest selects the apply strategy.
type ApplyRequest struct {
	Mode string `json:"mode"` // "incremental" (default) or "bruteforce"
}

// ApplyResponse reports the executed plan.
type ApplyResponse struct {
	Steps   []string `json:"steps"`
	Applied int      `json:"applied"`
	Total   int      `json:"total"`
}

// DiffResponse lists changed object and attribute paths.
type DiffResponse struct {
	Created []string `json:"created"`
	Removed []string `json:"removed"`
	Major   []string `json:"major"`
	Minor   []string `json:"minor"`
	Summary string   `json:"summary"`
}

// HistoryEntry is one committed configuration change.
type HistoryEntry struct {
	ID   string `json:"id"`
	Time string `json:"time"`
	Op   string `json:"op"`
}
