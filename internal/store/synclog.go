package store

import (
	"context"
	"fmt"

	"tillsync/internal/model"
)

// AppendSyncLog records the outcome of one sync cycle in the local audit
// trail.
func (s *Store) AppendSyncLog(ctx context.Context, e model.SyncLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (tenant_id, started_at, duration_ms, pulled, pushed, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TenantID, e.StartedAt.UTC(), e.DurationMs, e.Pulled, e.Pushed, e.Failed, e.Error)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}

// ListSyncLog returns the most recent sync cycle records, newest first.
func (s *Store) ListSyncLog(ctx context.Context, tenantID string, limit int) ([]model.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, started_at, duration_ms, pulled, pushed, failed, error
		FROM sync_log WHERE tenant_id = ?
		ORDER BY id DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync log: %w", err)
	}
	defer rows.Close()

	var out []model.SyncLogEntry
	for rows.Next() {
		var e model.SyncLogEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.StartedAt, &e.DurationMs, &e.Pulled, &e.Pushed, &e.Failed, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
