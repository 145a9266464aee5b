package model

import "time"

// ConnectivityStatus is the coarse network/sync state shown to the UI.
type ConnectivityStatus string

const (
	StatusOffline      ConnectivityStatus = "offline"
	StatusSyncing      ConnectivityStatus = "syncing"
	StatusOnlineSynced ConnectivityStatus = "online_synced"
	StatusSyncFailed   ConnectivityStatus = "sync_failed"
)

// ConnectivityState is the live, non-persisted snapshot consumed by the UI
// layer. It is rebuilt from the probe signal on every start.
type ConnectivityState struct {
	Online     bool               `json:"online"`
	Status     ConnectivityStatus `json:"status"`
	LastSyncAt *time.Time         `json:"last_sync_at,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
	QueueCount int                `json:"queue_count"`
}

// Session is the active business context. Every read and write is scoped
// by it; changing it swaps the engine's working context atomically.
type Session struct {
	TenantID    string `json:"tenant_id" validate:"required"`
	BranchID    string `json:"branch_id" validate:"required"`
	WarehouseID string `json:"warehouse_id" validate:"required"`
	UserID      string `json:"user_id"`
}

// IsZero reports whether no session has been established.
func (s Session) IsZero() bool {
	return s.TenantID == "" && s.BranchID == "" && s.WarehouseID == ""
}
