package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tillsync/internal/model"
)

// recoverQueue resets items left syncing by a crash mid-push back to
// pending. At open nothing can be in flight, so a syncing row is always
// stale; re-pushing it is safe because pushes are idempotent.
func recoverQueue(db *sql.DB) error {
	res, err := db.Exec(`UPDATE sync_queue SET status = ? WHERE status = ?`,
		string(model.QueuePending), string(model.QueueSyncing))
	if err != nil {
		return fmt.Errorf("failed to recover in-flight queue items: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("[SyncQueue] Requeued %d item(s) left in flight by a previous run", n)
	}
	return nil
}

// Enqueue appends a mutation to the durable sync queue with
// status=pending and attempts=0. Creation order is drain order.
func (s *Store) Enqueue(ctx context.Context, tenantID string, kind model.MutationKind, payload interface{}) (*model.SyncQueueItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (tenant_id, kind, payload, status, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		tenantID, string(kind), string(raw), string(model.QueuePending), now)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue id: %w", err)
	}

	log.Printf("[SyncQueue] Enqueued %s item %d", kind, id)

	return &model.SyncQueueItem{
		ID:        id,
		TenantID:  tenantID,
		Kind:      kind,
		Payload:   raw,
		Status:    model.QueuePending,
		CreatedAt: now,
	}, nil
}

// PendingQueue returns the tenant's pending and previously failed items
// in creation order, ready for the next drain.
func (s *Store) PendingQueue(ctx context.Context, tenantID string) ([]model.SyncQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, kind, payload, status, attempts, last_attempt_at, error, created_at
		FROM sync_queue
		WHERE tenant_id = ? AND status IN (?, ?)
		ORDER BY id`,
		tenantID, string(model.QueuePending), string(model.QueueFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var out []model.SyncQueueItem
	for rows.Next() {
		var it model.SyncQueueItem
		var payload string
		var lastAttempt sql.NullTime
		if err := rows.Scan(&it.ID, &it.TenantID, &it.Kind, &payload, &it.Status, &it.Attempts, &lastAttempt, &it.Error, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		it.Payload = json.RawMessage(payload)
		if lastAttempt.Valid {
			t := lastAttempt.Time
			it.LastAttemptAt = &t
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// QueueCount returns the number of unconfirmed mutations for a tenant.
func (s *Store) QueueCount(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE tenant_id = ?`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// MarkQueueSyncing flags an item as in flight and records the attempt.
func (s *Store) MarkQueueSyncing(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET status = ?, attempts = attempts + 1, last_attempt_at = ?
		WHERE id = ?`,
		string(model.QueueSyncing), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark queue item %d syncing: %w", id, err)
	}
	return nil
}

// MarkQueueFailed records a push failure on a single item. The item stays
// queued and is retried on the next cycle.
func (s *Store) MarkQueueFailed(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, error = ? WHERE id = ?`,
		string(model.QueueFailed), msg, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue item %d failed: %w", id, err)
	}
	return nil
}

// CompleteCreateOrder confirms a pushed order and deletes its queue item
// in one transaction, so the queue can never reference a confirmed
// mutation and a confirmed order can never reappear in the queue.
func (s *Store) CompleteCreateOrder(ctx context.Context, itemID int64, orderID string, at time.Time) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE orders SET sync_status = ?, synced_at = ? WHERE id = ?`,
			string(model.SyncSynced), at.UTC(), orderID)
		if err != nil {
			return fmt.Errorf("failed to confirm order %s: %w", orderID, err)
		}
		return deleteQueueItemTx(ctx, tx, itemID)
	})
}

// CompleteUpsertProduct clears a product's dirty flag and deletes the
// queue item atomically.
func (s *Store) CompleteUpsertProduct(ctx context.Context, itemID int64, productID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE products SET dirty = 0 WHERE id = ?`, productID); err != nil {
			return fmt.Errorf("failed to confirm product %s: %w", productID, err)
		}
		return deleteQueueItemTx(ctx, tx, itemID)
	})
}

// CompleteUpsertCategory clears a category's dirty flag and deletes the
// queue item atomically.
func (s *Store) CompleteUpsertCategory(ctx context.Context, itemID int64, categoryID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE categories SET dirty = 0 WHERE id = ?`, categoryID); err != nil {
			return fmt.Errorf("failed to confirm category %s: %w", categoryID, err)
		}
		return deleteQueueItemTx(ctx, tx, itemID)
	})
}

func deleteQueueItemTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete queue item %d: %w", id, err)
	}
	return nil
}
