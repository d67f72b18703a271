// Package storage persists view preferences and graph snapshots in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound is returned when no snapshot has been saved under a name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// DB wraps a SQLite database connection.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Create schema if needed
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- View preferences (layout, filter)
		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		-- Named snapshots of the locally known graph
		CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			saved_at TEXT NOT NULL,
			node_count INTEGER NOT NULL,
			edge_count INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS snapshot_nodes (
			snapshot TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			label TEXT NOT NULL,
			type TEXT NOT NULL,
			properties_json TEXT,
			PRIMARY KEY (snapshot, id)
		);

		CREATE TABLE IF NOT EXISTS snapshot_edges (
			snapshot TEXT NOT NULL,
			position INTEGER NOT NULL,
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			type TEXT NOT NULL,
			weight REAL NOT NULL,
			PRIMARY KEY (snapshot, from_id, to_id, type)
		);

		CREATE INDEX IF NOT EXISTS idx_snapshot_edges_from ON snapshot_edges(snapshot, from_id);
		CREATE INDEX IF NOT EXISTS idx_snapshot_edges_to ON snapshot_edges(snapshot, to_id);
	`

	_, err := db.Exec(schema)
	return err
}

// timestamp formats the current time for storage.
func (d *DB) timestamp() string {
	return d.now().UTC().Format(time.RFC3339)
}
