package model

import "time"

// SyncLogEntry records the outcome of one sync cycle in the local audit
// trail. Writing it is best effort; a failed write is logged, never raised.
type SyncLogEntry struct {
	ID         int64     `json:"id"`
	TenantID   string    `json:"tenant_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Pulled     int       `json:"pulled"`
	Pushed     int       `json:"pushed"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}
