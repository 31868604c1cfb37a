// Package store implements C13: persistent storage of contracts and
// bonds plus an in-memory brute-force cosine index used by C6. Grounded
// on aristath-sentinel's internal/database package: modernc.org/sqlite
// (pure Go, no cgo), WAL journal mode, a single schema applied at
// startup inside a transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
	platform    TEXT NOT NULL,
	id          TEXT NOT NULL,
	key         TEXT NOT NULL,
	status      TEXT NOT NULL,
	body        TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (platform, id)
);
CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status);
CREATE INDEX IF NOT EXISTS idx_contracts_key ON contracts(key);

CREATE TABLE IF NOT EXISTS bonds (
	pair_id        TEXT PRIMARY KEY,
	contract_a_key TEXT NOT NULL,
	contract_b_key TEXT NOT NULL,
	tier           INTEGER NOT NULL,
	status         TEXT NOT NULL,
	body           TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bonds_status ON bonds(status);
CREATE INDEX IF NOT EXISTS idx_bonds_contract_a ON bonds(contract_a_key);
CREATE INDEX IF NOT EXISTS idx_bonds_contract_b ON bonds(contract_b_key);
`

// DB wraps the underlying sqlite connection with the pragmas and pool
// limits this repo's daemon-style, long-running process needs.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates (or opens) the sqlite-backed store at path, applying the
// schema within a transaction.
func Open(path string) (*DB, error) {
	if path != "file::memory:?cache=shared" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve store path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		path = absPath
	}

	pragmas := "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_pragma=cache_size(-32000)"
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := path + sep + pragmas
	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping store: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	if _, err := tx.Exec(schema); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
