package remote

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store against the hosted MySQL backend.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against the remote store.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Printf("[RemoteStore] MySQL store configured")
	return &MySQLStore{db: db}, nil
}

// Ping reports remote reachability; the connectivity probe is built on it.
func (r *MySQLStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the connection pool.
func (r *MySQLStore) Close() error {
	return r.db.Close()
}

// FetchCategories returns all categories for a tenant.
func (r *MySQLStore) FetchCategories(ctx context.Context, tenantID string) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, COALESCE(description, ''), is_active, updated_at
		FROM categories WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.IsActive, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FetchProducts returns all products for a tenant with the category name joined.
func (r *MySQLStore) FetchProducts(ctx context.Context, tenantID string) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.tenant_id, COALESCE(p.category_id, ''), COALESCE(c.name, ''),
		       COALESCE(p.sku, ''), p.name, COALESCE(p.unit, ''), p.price, COALESCE(p.cost, 0),
		       p.is_active, p.updated_at
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = ?`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.CategoryID, &p.CategoryName, &p.SKU, &p.Name,
			&p.Unit, &p.Price, &p.Cost, &p.IsActive, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FetchInventory returns raw inventory rows for one warehouse.
func (r *MySQLStore) FetchInventory(ctx context.Context, tenantID, warehouseID string) ([]InventoryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, warehouse_id, product_id, quantity, updated_at
		FROM inventory WHERE tenant_id = ? AND warehouse_id = ?`, tenantID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var iv InventoryRow
		if err := rows.Scan(&iv.ID, &iv.TenantID, &iv.WarehouseID, &iv.ProductID, &iv.Quantity, &iv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// FetchRecentSales returns the most recent limit sales with their items.
func (r *MySQLStore) FetchRecentSales(ctx context.Context, tenantID, branchID string, limit int) ([]Sale, []SaleItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, branch_id, warehouse_id, COALESCE(invoice_no, ''), COALESCE(customer_name, ''),
		       subtotal, discount, total, paid, payment_method, COALESCE(created_by, ''), created_at
		FROM sales WHERE tenant_id = ? AND branch_id = ?
		ORDER BY created_at DESC LIMIT ?`, tenantID, branchID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	ids := make([]interface{}, 0, limit)
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.TenantID, &s.BranchID, &s.WarehouseID, &s.InvoiceNo, &s.CustomerName,
			&s.Subtotal, &s.Discount, &s.Total, &s.Paid, &s.PaymentMethod, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(sales) == 0 {
		return nil, nil, nil
	}

	placeholders := "?"
	for i := 1; i < len(ids); i++ {
		placeholders += ", ?"
	}
	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, COALESCE(product_name, ''), quantity, unit_price, line_total
		FROM sale_items WHERE sale_id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch sale items: %w", err)
	}
	defer itemRows.Close()

	var items []SaleItem
	for itemRows.Next() {
		var it SaleItem
		if err := itemRows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		items = append(items, it)
	}
	return sales, items, itemRows.Err()
}

// SaleExists checks for a previously recorded sale by id.
func (r *MySQLStore) SaleExists(ctx context.Context, saleID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE id = ?`, saleID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check sale existence: %w", err)
	}
	return count > 0, nil
}

// InsertSale records a sale and its items in one remote transaction.
func (r *MySQLStore) InsertSale(ctx context.Context, sale Sale, items []SaleItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin remote transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, tenant_id, branch_id, warehouse_id, invoice_no, customer_name,
			subtotal, discount, total, paid, payment_method, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.TenantID, sale.BranchID, sale.WarehouseID, sale.InvoiceNo, sale.CustomerName,
		sale.Subtotal, sale.Discount, sale.Total, sale.Paid, sale.PaymentMethod, sale.CreatedBy, sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sale %s: %w", sale.ID, err)
	}

	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.SaleID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return fmt.Errorf("failed to insert sale item %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sale %s: %w", sale.ID, err)
	}
	return nil
}

// UpsertProduct writes a product row.
func (r *MySQLStore) UpsertProduct(ctx context.Context, p Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, category_id, sku, name, unit, price, cost, is_active, updated_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			category_id = VALUES(category_id),
			sku = VALUES(sku),
			name = VALUES(name),
			unit = VALUES(unit),
			price = VALUES(price),
			cost = VALUES(cost),
			is_active = VALUES(is_active),
			updated_at = VALUES(updated_at)`,
		p.ID, p.TenantID, p.CategoryID, p.SKU, p.Name, p.Unit, p.Price, p.Cost, p.IsActive, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertCategory writes a category row.
func (r *MySQLStore) UpsertCategory(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name, description, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			description = VALUES(description),
			is_active = VALUES(is_active),
			updated_at = VALUES(updated_at)`,
		c.ID, c.TenantID, c.Name, c.Description, c.IsActive, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert category %s: %w", c.ID, err)
	}
	return nil
}

// AdjustInventory applies a signed quantity change to the first inventory
// row for the pair, creating one when none exists. Row selection is
// simplistic on purpose: the next master-data pull re-aggregates whatever
// batch layout the backend keeps.
func (r *MySQLStore) AdjustInventory(ctx context.Context, tenantID, warehouseID, productID string, delta float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin remote transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	var qty float64
	err = tx.QueryRowContext(ctx, `
		SELECT id, quantity FROM inventory
		WHERE tenant_id = ? AND warehouse_id = ? AND product_id = ?
		ORDER BY updated_at DESC LIMIT 1 FOR UPDATE`,
		tenantID, warehouseID, productID).Scan(&id, &qty)

	now := time.Now().UTC()
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (id, tenant_id, warehouse_id, product_id, quantity, updated_at)
			VALUES (UUID(), ?, ?, ?, ?, ?)`,
			tenantID, warehouseID, productID, delta, now)
	case err != nil:
		return fmt.Errorf("failed to read inventory row: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE inventory SET quantity = ?, updated_at = ? WHERE id = ?`,
			qty+delta, now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to adjust inventory %s/%s: %w", warehouseID, productID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inventory adjustment: %w", err)
	}
	return nil
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
