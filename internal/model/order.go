package model

import "time"

// SyncStatus tracks whether a locally created order has been confirmed
// by the remote store.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Order is a completed sale, created client-side at checkout time with a
// client-generated id that doubles as the idempotency key for push retries.
type Order struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	BranchID      string     `json:"branch_id"`
	WarehouseID   string     `json:"warehouse_id"`
	InvoiceNo     string     `json:"invoice_no"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	Total         float64    `json:"total"`
	Paid          float64    `json:"paid"`
	PaymentMethod string     `json:"payment_method"` // CASH, CARD, TRANSFER
	SyncStatus    SyncStatus `json:"sync_status"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OrderItem is a single line of an order. Product name and price are
// snapshotted at sale time; later catalog edits do not rewrite history.
type OrderItem struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// CreateOrderInput is what the checkout flow submits.
type CreateOrderInput struct {
	Items         []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	CustomerName  string           `json:"customer_name,omitempty"`
	Discount      float64          `json:"discount" validate:"gte=0"`
	Paid          float64          `json:"paid" validate:"gte=0"`
	PaymentMethod string           `json:"payment_method" validate:"required,oneof=CASH CARD TRANSFER"`
}

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// OrderFilter narrows local order list reads.
type OrderFilter struct {
	TenantID string     `json:"tenant_id"`
	BranchID string     `json:"branch_id,omitempty"`
	Status   SyncStatus `json:"status,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}
