package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tillsync/internal/model"
)

// CreateOrder durably records a sale in one transaction: the order row,
// its items, the stock deltas, and the derived customer all commit
// together. Nothing here touches the network, so this cannot fail due to
// connectivity.
func (s *Store) CreateOrder(ctx context.Context, payload model.CreateOrderPayload) error {
	now := time.Now().UTC()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		o := payload.Order
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, tenant_id, branch_id, warehouse_id, invoice_no, customer_id, customer_name,
				subtotal, discount, total, paid, payment_method, sync_status, synced_at, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
			o.ID, o.TenantID, o.BranchID, o.WarehouseID, o.InvoiceNo, o.CustomerID, o.CustomerName,
			o.Subtotal, o.Discount, o.Total, o.Paid, o.PaymentMethod, string(o.SyncStatus), o.CreatedBy, o.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
		}

		for _, it := range payload.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, line_total)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal)
			if err != nil {
				return fmt.Errorf("failed to insert order item %s: %w", it.ID, err)
			}
		}

		for _, d := range payload.Deltas {
			if err := applyStockDeltaTx(ctx, tx, o.TenantID, d, now); err != nil {
				return err
			}
		}

		if payload.Customer != nil {
			if err := upsertCustomerTx(ctx, tx, *payload.Customer); err != nil {
				return err
			}
		}

		return nil
	})
}

func upsertCustomerTx(ctx context.Context, tx *sql.Tx, c model.Customer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		c.ID, c.TenantID, c.Name, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
	}
	return nil
}

// GetOrder returns an order by id, or nil when absent.
func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOrder(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getOrder(ctx context.Context, q queryRower, id string) (*model.Order, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, branch_id, warehouse_id, invoice_no, customer_id, customer_name,
		       subtotal, discount, total, paid, payment_method, sync_status, synced_at, created_by, created_at
		FROM orders WHERE id = ?`, id)

	var o model.Order
	var syncedAt sql.NullTime
	err := row.Scan(&o.ID, &o.TenantID, &o.BranchID, &o.WarehouseID, &o.InvoiceNo, &o.CustomerID, &o.CustomerName,
		&o.Subtotal, &o.Discount, &o.Total, &o.Paid, &o.PaymentMethod, &o.SyncStatus, &syncedAt, &o.CreatedBy, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		o.SyncedAt = &t
	}
	return &o, nil
}

// ListOrders returns local orders matching the filter, newest first.
func (s *Store) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, tenant_id, branch_id, warehouse_id, invoice_no, customer_id, customer_name,
		       subtotal, discount, total, paid, payment_method, sync_status, synced_at, created_by, created_at
		FROM orders WHERE tenant_id = ?`
	args := []interface{}{filter.TenantID}

	if filter.BranchID != "" {
		query += ` AND branch_id = ?`
		args = append(args, filter.BranchID)
	}
	if filter.Status != "" {
		query += ` AND sync_status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		var syncedAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.TenantID, &o.BranchID, &o.WarehouseID, &o.InvoiceNo, &o.CustomerID, &o.CustomerName,
			&o.Subtotal, &o.Discount, &o.Total, &o.Paid, &o.PaymentMethod, &o.SyncStatus, &syncedAt, &o.CreatedBy, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if syncedAt.Valid {
			t := syncedAt.Time
			o.SyncedAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOrderItems returns the items of one order.
func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkOrderSynced confirms an order against the remote store. Used by the
// inline write-through path; queue completion goes through
// CompleteCreateOrder instead so the confirm and the dequeue share a tx.
func (s *Store) MarkOrderSynced(ctx context.Context, orderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET sync_status = ?, synced_at = ? WHERE id = ?`,
		string(model.SyncSynced), at.UTC(), orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order %s synced: %w", orderID, err)
	}
	return nil
}

// MergeOrders applies pulled remote orders. A local order still pending
// push is never overwritten: the remote copy (or its absence) may simply
// be stale. Confirmed orders are replaced freely. Customers are derived
// from the order's customer_name with the same deterministic id scheme
// the checkout path uses.
func (s *Store) MergeOrders(ctx context.Context, orders []model.Order, items map[string][]model.OrderItem, customerID func(tenantID, name string) string) (int, error) {
	merged := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTxLocked(ctx, func(tx *sql.Tx) error {
		for _, o := range orders {
			existing, err := getOrder(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			if existing != nil && existing.SyncStatus == model.SyncPending {
				continue
			}

			var syncedAt interface{}
			if o.SyncedAt != nil {
				syncedAt = o.SyncedAt.UTC()
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO orders (id, tenant_id, branch_id, warehouse_id, invoice_no, customer_id, customer_name,
					subtotal, discount, total, paid, payment_method, sync_status, synced_at, created_by, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					invoice_no = excluded.invoice_no,
					customer_id = excluded.customer_id,
					customer_name = excluded.customer_name,
					subtotal = excluded.subtotal,
					discount = excluded.discount,
					total = excluded.total,
					paid = excluded.paid,
					payment_method = excluded.payment_method,
					sync_status = excluded.sync_status,
					synced_at = excluded.synced_at`,
				o.ID, o.TenantID, o.BranchID, o.WarehouseID, o.InvoiceNo, o.CustomerID, o.CustomerName,
				o.Subtotal, o.Discount, o.Total, o.Paid, o.PaymentMethod, string(o.SyncStatus), syncedAt, o.CreatedBy, o.CreatedAt.UTC())
			if err != nil {
				return fmt.Errorf("failed to merge order %s: %w", o.ID, err)
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, o.ID); err != nil {
				return fmt.Errorf("failed to clear items for order %s: %w", o.ID, err)
			}
			for _, it := range items[o.ID] {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, line_total)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal)
				if err != nil {
					return fmt.Errorf("failed to merge order item %s: %w", it.ID, err)
				}
			}

			if o.CustomerName != "" {
				err := upsertCustomerTx(ctx, tx, model.Customer{
					ID:        customerID(o.TenantID, o.CustomerName),
					TenantID:  o.TenantID,
					Name:      o.CustomerName,
					CreatedAt: o.CreatedAt,
				})
				if err != nil {
					return err
				}
			}

			merged++
		}
		return nil
	})
	return merged, err
}
