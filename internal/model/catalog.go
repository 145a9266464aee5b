package model

import "time"

// Category represents a catalog category mirrored from the remote store.
type Category struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Local sync decoration, never sent to the remote store.
	LocalUpdatedAt time.Time `json:"local_updated_at"`
	Dirty          bool      `json:"dirty"`
}

// Product represents a catalog product mirrored from the remote store.
// CategoryName is denormalized from the category join so list reads
// need no second lookup.
type Product struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	CategoryID   string    `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	SKU          string    `json:"sku,omitempty"`
	Name         string    `json:"name" validate:"required"`
	Unit         string    `json:"unit,omitempty"`
	Price        float64   `json:"price" validate:"gte=0"`
	Cost         float64   `json:"cost,omitempty"`
	IsActive     bool      `json:"is_active"`
	UpdatedAt    time.Time `json:"updated_at"`

	LocalUpdatedAt time.Time `json:"local_updated_at"`
	Dirty          bool      `json:"dirty"`

	// Stock is the cached quantity for the warehouse a list was scoped to.
	// Zero when the read was not warehouse-scoped.
	Stock float64 `json:"stock"`
}

// StockLevel is the locally materialized stock aggregate for one
// (warehouse, product) pair. It is a read cache, not a source of truth:
// remote inventory may hold several rows per product (batches) which are
// summed before landing here.
type StockLevel struct {
	TenantID    string    `json:"tenant_id"`
	WarehouseID string    `json:"warehouse_id"`
	ProductID   string    `json:"product_id"`
	Quantity    float64   `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`

	LocalUpdatedAt time.Time `json:"local_updated_at"`
	Dirty          bool      `json:"dirty"`
}

// Customer is derived from order entry. The ID is deterministic
// (tenant:lowercased-name) so repeated walk-in entries collapse into one row.
type Customer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
