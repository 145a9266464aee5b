// Package remote defines the authoritative store the terminal syncs
// against, reduced to the handful of relational primitives the engine
// needs: scoped selects, inserts, upserts, and an existence check.
package remote

import (
	"context"
	"time"
)

// Category is a category row as the remote store returns it.
type Category struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	IsActive    bool
	UpdatedAt   time.Time
}

// Product is a product row with its minimal relational context
// (the joined category name).
type Product struct {
	ID           string
	TenantID     string
	CategoryID   string
	CategoryName string
	SKU          string
	Name         string
	Unit         string
	Price        float64
	Cost         float64
	IsActive     bool
	UpdatedAt    time.Time
}

// InventoryRow is one remote inventory row. The remote store may hold
// several rows per (warehouse, product) pair, one per batch, so callers
// aggregate before comparing against the local stock cache.
type InventoryRow struct {
	ID          string
	TenantID    string
	WarehouseID string
	ProductID   string
	Quantity    float64
	UpdatedAt   time.Time
}

// Sale is an order row on the remote store.
type Sale struct {
	ID            string
	TenantID      string
	BranchID      string
	WarehouseID   string
	InvoiceNo     string
	CustomerName  string
	Subtotal      float64
	Discount      float64
	Total         float64
	Paid          float64
	PaymentMethod string
	CreatedBy     string
	CreatedAt     time.Time
}

// SaleItem is one line of a remote sale.
type SaleItem struct {
	ID          string
	SaleID      string
	ProductID   string
	ProductName string
	Quantity    float64
	UnitPrice   float64
	LineTotal   float64
}

// Store is the remote store surface consumed by the sync engine. Every
// call may fail with a network error; callers own the degradation story.
type Store interface {
	// FetchCategories returns all categories for a tenant.
	FetchCategories(ctx context.Context, tenantID string) ([]Category, error)

	// FetchProducts returns all products for a tenant with the joined
	// category name.
	FetchProducts(ctx context.Context, tenantID string) ([]Product, error)

	// FetchInventory returns the raw inventory rows for one warehouse,
	// possibly several per product.
	FetchInventory(ctx context.Context, tenantID, warehouseID string) ([]InventoryRow, error)

	// FetchRecentSales returns the most recent limit sales for a
	// tenant/branch along with all their items.
	FetchRecentSales(ctx context.Context, tenantID, branchID string, limit int) ([]Sale, []SaleItem, error)

	// SaleExists reports whether a sale with the given id was already
	// recorded. This is the idempotency check that makes push retries safe.
	SaleExists(ctx context.Context, saleID string) (bool, error)

	// InsertSale records a sale and its items.
	InsertSale(ctx context.Context, sale Sale, items []SaleItem) error

	// UpsertProduct writes a product row.
	UpsertProduct(ctx context.Context, p Product) error

	// UpsertCategory writes a category row.
	UpsertCategory(ctx context.Context, c Category) error

	// AdjustInventory applies a signed quantity change to one
	// (warehouse, product) pair as a read-modify-write.
	AdjustInventory(ctx context.Context, tenantID, warehouseID, productID string, delta float64) error
}
