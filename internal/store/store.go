package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// schemaVersion is bumped whenever the local schema changes shape.
const schemaVersion = "1"

// Store is the on-device durable store backing every read the terminal
// serves and every write it records. All operations are purely local:
// nothing in this package initiates network I/O, and a returned write is
// immediately visible to subsequent local reads.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the local database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// WAL mode for concurrent reads during the sync cycle's writes.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := recoverQueue(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.setMeta(context.Background(), "schema_version", schemaVersion); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[LocalStore] Initialized with database: %s", path)
	return s, nil
}

func createTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		local_updated_at DATETIME NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_categories_tenant ON categories(tenant_id);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		category_name TEXT NOT NULL DEFAULT '',
		sku TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		local_updated_at DATETIME NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_products_tenant ON products(tenant_id);

	CREATE TABLE IF NOT EXISTS stock (
		tenant_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		local_updated_at DATETIME NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (warehouse_id, product_id)
	);
	CREATE INDEX IF NOT EXISTS idx_stock_tenant ON stock(tenant_id);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		invoice_no TEXT NOT NULL,
		customer_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		subtotal REAL NOT NULL DEFAULT 0,
		discount REAL NOT NULL DEFAULT 0,
		total REAL NOT NULL DEFAULT 0,
		paid REAL NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL DEFAULT 'CASH',
		sync_status TEXT NOT NULL DEFAULT 'pending',
		synced_at DATETIME,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_tenant_created ON orders(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		quantity REAL NOT NULL,
		unit_price REAL NOT NULL DEFAULT 0,
		line_total REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_attempt_at DATETIME,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_tenant ON sync_queue(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS sync_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		pulled INTEGER NOT NULL DEFAULT 0,
		pushed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// WithTx runs fn inside a single transaction: every row written by fn
// commits together or not at all. This is the store's only multi-write
// primitive; the engine and facade never compose half-transactions.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTxLocked(ctx, fn)
}

// withTxLocked assumes s.mu is already held for writing.
func (s *Store) withTxLocked(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

// GetMeta returns the stored value for key, or "" when absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a key/value pair in the meta collection.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMeta(ctx, key, value)
}

// Ping verifies the local database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
