package model

import (
	"encoding/json"
	"time"
)

// MutationKind tags the payload of a queued mutation.
type MutationKind string

const (
	MutationCreateOrder    MutationKind = "create_order"
	MutationUpsertProduct  MutationKind = "upsert_product"
	MutationUpsertCategory MutationKind = "upsert_category"
)

// QueueStatus is the processing state of a queued mutation.
type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueueSyncing QueueStatus = "syncing"
	QueueFailed  QueueStatus = "failed"
)

// SyncQueueItem is one not-yet-confirmed mutation waiting to reach the
// remote store. Items are drained in creation order; a failed item keeps
// its error and stays queued for the next cycle.
type SyncQueueItem struct {
	ID            int64           `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Kind          MutationKind    `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Status        QueueStatus     `json:"status"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StockDelta is a signed stock change for one (warehouse, product) pair.
// A sale of 3 units carries Quantity = -3.
type StockDelta struct {
	WarehouseID string  `json:"warehouse_id"`
	ProductID   string  `json:"product_id"`
	Quantity    float64 `json:"quantity"`
}

// CreateOrderPayload is the full payload of a queued create_order mutation:
// everything the push needs to replay the sale against the remote store.
type CreateOrderPayload struct {
	Order    Order        `json:"order"`
	Items    []OrderItem  `json:"items"`
	Deltas   []StockDelta `json:"deltas"`
	Customer *Customer    `json:"customer,omitempty"`
}
