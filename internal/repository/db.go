package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS receipts (
	id             TEXT PRIMARY KEY,
	server_id      TEXT NOT NULL DEFAULT '',
	receipt_number TEXT NOT NULL DEFAULT '',
	store_name     TEXT NOT NULL DEFAULT '',
	store_location TEXT NOT NULL DEFAULT '',
	purchase_date  TEXT NOT NULL,
	subtotal       TEXT NOT NULL DEFAULT '0',
	tax            TEXT NOT NULL DEFAULT '0',
	total          TEXT NOT NULL DEFAULT '0',
	notes          TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	raw_file_ref   TEXT NOT NULL DEFAULT '',
	local_edits    INTEGER NOT NULL DEFAULT 0,
	last_synced_at TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_server_id ON receipts(server_id);
CREATE INDEX IF NOT EXISTS idx_receipts_purchase_date ON receipts(purchase_date);

CREATE TABLE IF NOT EXISTS line_items (
	id              TEXT PRIMARY KEY,
	receipt_id      TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
	server_id       TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	price           TEXT NOT NULL DEFAULT '0',
	quantity        INTEGER NOT NULL DEFAULT 1,
	item_code       TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	order_index     INTEGER NOT NULL DEFAULT 0,
	on_sale         INTEGER NOT NULL DEFAULT 0,
	instant_savings TEXT NOT NULL DEFAULT '0',
	original_price  TEXT NOT NULL DEFAULT '0'
);
CREATE INDEX IF NOT EXISTS idx_line_items_receipt_id ON line_items(receipt_id);
`

// Open opens (or creates) the SQLite store at path and applies the schema.
// A backing file that fails to open or migrate is treated as corrupted:
// it is deleted once and the store reinitialized empty. That is a data-loss
// event and is logged as such, never swallowed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := open(ctx, path)
	if err == nil {
		return db, nil
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	logger.Error("store.corrupted", "path", path, "error", err)
	if rmErr := os.Remove(path); rmErr != nil {
		return nil, fmt.Errorf("remove corrupted store: %w", rmErr)
	}

	db, err = open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reinitialize store: %w", err)
	}
	logger.Warn("store.recovered", "path", path, "data_loss", true)
	return db, nil
}

func open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite is a single-connection-friendly driver; the repository
	// serializes writes itself, one connection is enough.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the store gracefully.
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
	}
}
