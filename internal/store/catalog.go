package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tillsync/internal/model"
)

// SaveCategory writes a category row as given. The local-first write path
// calls this with Dirty=true and a fresh LocalUpdatedAt.
func (s *Store) SaveCategory(ctx context.Context, c *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name, description, is_active, updated_at, local_updated_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at,
			local_updated_at = excluded.local_updated_at,
			dirty = excluded.dirty`,
		c.ID, c.TenantID, c.Name, c.Description, c.IsActive, c.UpdatedAt.UTC(), c.LocalUpdatedAt.UTC(), c.Dirty)
	if err != nil {
		return fmt.Errorf("failed to save category %s: %w", c.ID, err)
	}
	return nil
}

// GetCategory returns a category by id, or nil when absent.
func (s *Store) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, is_active, updated_at, local_updated_at, dirty
		FROM categories WHERE id = ?`, id)

	var c model.Category
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.IsActive, &c.UpdatedAt, &c.LocalUpdatedAt, &c.Dirty)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category %s: %w", id, err)
	}
	return &c, nil
}

// ListCategories returns the tenant's categories, active first, by name.
func (s *Store) ListCategories(ctx context.Context, tenantID string) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, description, is_active, updated_at, local_updated_at, dirty
		FROM categories WHERE tenant_id = ?
		ORDER BY is_active DESC, name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.IsActive, &c.UpdatedAt, &c.LocalUpdatedAt, &c.Dirty); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MergeCategories applies a pulled category snapshot inside one
// transaction. Per row: if the local copy is dirty and its local_updated_at
// is not older than the incoming remote timestamp, the incoming row is
// discarded; otherwise it replaces the local row and dirty is cleared.
func (s *Store) MergeCategories(ctx context.Context, incoming []model.Category) (int, error) {
	merged := 0
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTxLocked(ctx, func(tx *sql.Tx) error {
		for _, c := range incoming {
			keep, err := localWins(tx, `SELECT dirty, local_updated_at FROM categories WHERE id = ?`, c.ID, c.UpdatedAt)
			if err != nil {
				return err
			}
			if keep {
				continue
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO categories (id, tenant_id, name, description, is_active, updated_at, local_updated_at, dirty)
				VALUES (?, ?, ?, ?, ?, ?, ?, 0)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					description = excluded.description,
					is_active = excluded.is_active,
					updated_at = excluded.updated_at,
					local_updated_at = excluded.local_updated_at,
					dirty = 0`,
				c.ID, c.TenantID, c.Name, c.Description, c.IsActive, c.UpdatedAt.UTC(), now)
			if err != nil {
				return fmt.Errorf("failed to merge category %s: %w", c.ID, err)
			}
			merged++
		}
		return nil
	})
	return merged, err
}

// SaveProduct writes a product row as given (local-first write path).
func (s *Store) SaveProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, category_id, category_name, sku, name, unit, price, cost, is_active, updated_at, local_updated_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_id = excluded.category_id,
			category_name = excluded.category_name,
			sku = excluded.sku,
			name = excluded.name,
			unit = excluded.unit,
			price = excluded.price,
			cost = excluded.cost,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at,
			local_updated_at = excluded.local_updated_at,
			dirty = excluded.dirty`,
		p.ID, p.TenantID, p.CategoryID, p.CategoryName, p.SKU, p.Name, p.Unit, p.Price, p.Cost,
		p.IsActive, p.UpdatedAt.UTC(), p.LocalUpdatedAt.UTC(), p.Dirty)
	if err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return nil
}

// GetProduct returns a product by id, or nil when absent.
func (s *Store) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, category_id, category_name, sku, name, unit, price, cost, is_active, updated_at, local_updated_at, dirty
		FROM products WHERE id = ?`, id)

	var p model.Product
	err := row.Scan(&p.ID, &p.TenantID, &p.CategoryID, &p.CategoryName, &p.SKU, &p.Name, &p.Unit,
		&p.Price, &p.Cost, &p.IsActive, &p.UpdatedAt, &p.LocalUpdatedAt, &p.Dirty)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &p, nil
}

// ListProducts returns the tenant's products. When warehouseID is non-empty
// each row carries the cached stock quantity for that warehouse.
func (s *Store) ListProducts(ctx context.Context, tenantID, warehouseID string) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT p.id, p.tenant_id, p.category_id, p.category_name, p.sku, p.name, p.unit,
		       p.price, p.cost, p.is_active, p.updated_at, p.local_updated_at, p.dirty,
		       COALESCE(st.quantity, 0)
		FROM products p
		LEFT JOIN stock st ON st.product_id = p.id AND st.warehouse_id = ?
		WHERE p.tenant_id = ?
		ORDER BY p.is_active DESC, p.name`

	rows, err := s.db.QueryContext(ctx, query, warehouseID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.CategoryID, &p.CategoryName, &p.SKU, &p.Name, &p.Unit,
			&p.Price, &p.Cost, &p.IsActive, &p.UpdatedAt, &p.LocalUpdatedAt, &p.Dirty, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MergeProducts applies a pulled product snapshot, same policy as
// MergeCategories.
func (s *Store) MergeProducts(ctx context.Context, incoming []model.Product) (int, error) {
	merged := 0
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTxLocked(ctx, func(tx *sql.Tx) error {
		for _, p := range incoming {
			keep, err := localWins(tx, `SELECT dirty, local_updated_at FROM products WHERE id = ?`, p.ID, p.UpdatedAt)
			if err != nil {
				return err
			}
			if keep {
				continue
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO products (id, tenant_id, category_id, category_name, sku, name, unit, price, cost, is_active, updated_at, local_updated_at, dirty)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
				ON CONFLICT(id) DO UPDATE SET
					category_id = excluded.category_id,
					category_name = excluded.category_name,
					sku = excluded.sku,
					name = excluded.name,
					unit = excluded.unit,
					price = excluded.price,
					cost = excluded.cost,
					is_active = excluded.is_active,
					updated_at = excluded.updated_at,
					local_updated_at = excluded.local_updated_at,
					dirty = 0`,
				p.ID, p.TenantID, p.CategoryID, p.CategoryName, p.SKU, p.Name, p.Unit, p.Price, p.Cost,
				p.IsActive, p.UpdatedAt.UTC(), now)
			if err != nil {
				return fmt.Errorf("failed to merge product %s: %w", p.ID, err)
			}
			merged++
		}
		return nil
	})
	return merged, err
}

// GetStock returns the cached stock level for one (warehouse, product)
// pair, or nil when no row exists yet.
func (s *Store) GetStock(ctx context.Context, warehouseID, productID string) (*model.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, warehouse_id, product_id, quantity, updated_at, local_updated_at, dirty
		FROM stock WHERE warehouse_id = ? AND product_id = ?`, warehouseID, productID)

	var st model.StockLevel
	err := row.Scan(&st.TenantID, &st.WarehouseID, &st.ProductID, &st.Quantity, &st.UpdatedAt, &st.LocalUpdatedAt, &st.Dirty)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %s/%s: %w", warehouseID, productID, err)
	}
	return &st, nil
}

// MergeStock applies a pulled, already-aggregated stock snapshot for one
// warehouse. Same dirty/timestamp policy as the catalog merges.
func (s *Store) MergeStock(ctx context.Context, incoming []model.StockLevel) (int, error) {
	merged := 0
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTxLocked(ctx, func(tx *sql.Tx) error {
		for _, st := range incoming {
			keep, err := localWins(tx,
				`SELECT dirty, local_updated_at FROM stock WHERE warehouse_id = ? AND product_id = ?`,
				[2]string{st.WarehouseID, st.ProductID}, st.UpdatedAt)
			if err != nil {
				return err
			}
			if keep {
				continue
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO stock (tenant_id, warehouse_id, product_id, quantity, updated_at, local_updated_at, dirty)
				VALUES (?, ?, ?, ?, ?, ?, 0)
				ON CONFLICT(warehouse_id, product_id) DO UPDATE SET
					quantity = excluded.quantity,
					updated_at = excluded.updated_at,
					local_updated_at = excluded.local_updated_at,
					dirty = 0`,
				st.TenantID, st.WarehouseID, st.ProductID, st.Quantity, st.UpdatedAt.UTC(), now)
			if err != nil {
				return fmt.Errorf("failed to merge stock %s/%s: %w", st.WarehouseID, st.ProductID, err)
			}
			merged++
		}
		return nil
	})
	return merged, err
}

// applyStockDeltaTx adjusts the cached quantity for one (warehouse, product)
// pair inside an existing transaction, marking the row dirty so the next
// pull cannot silently clobber the unconfirmed local change.
func applyStockDeltaTx(ctx context.Context, tx *sql.Tx, tenantID string, d model.StockDelta, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock (tenant_id, warehouse_id, product_id, quantity, updated_at, local_updated_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(warehouse_id, product_id) DO UPDATE SET
			quantity = quantity + ?,
			local_updated_at = ?,
			dirty = 1`,
		tenantID, d.WarehouseID, d.ProductID, d.Quantity, now, now, d.Quantity, now)
	if err != nil {
		return fmt.Errorf("failed to apply stock delta %s/%s: %w", d.WarehouseID, d.ProductID, err)
	}
	return nil
}

// localWins reports whether the existing local row should survive an
// incoming remote row: it must be dirty and locally touched no earlier
// than the remote timestamp.
func localWins(tx *sql.Tx, query string, key interface{}, remoteUpdatedAt time.Time) (bool, error) {
	var args []interface{}
	switch k := key.(type) {
	case [2]string:
		args = []interface{}{k[0], k[1]}
	default:
		args = []interface{}{key}
	}

	var dirty bool
	var localUpdatedAt time.Time
	err := tx.QueryRow(query, args...).Scan(&dirty, &localUpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read local row for merge: %w", err)
	}

	return dirty && !localUpdatedAt.Before(remoteUpdatedAt), nil
}
