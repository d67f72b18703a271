package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voltask/graphx/internal/graph"
)

// DefaultSnapshot is the name under which the last loaded graph is cached.
const DefaultSnapshot = "last"

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	SavedAt   time.Time `json:"saved_at"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
}

// SaveSnapshot replaces the snapshot stored under name.
func (d *DB) SaveSnapshot(name string, s graph.Snapshot) (err error) {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM snapshot_nodes WHERE snapshot = ?`,
		`DELETE FROM snapshot_edges WHERE snapshot = ?`,
		`DELETE FROM snapshots WHERE name = ?`,
	} {
		if _, err = tx.Exec(stmt, name); err != nil {
			return fmt.Errorf("clearing snapshot %s: %w", name, err)
		}
	}

	nodeStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO snapshot_nodes (snapshot, position, id, label, type, properties_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing node insert: %w", err)
	}
	defer nodeStmt.Close()

	for i, n := range s.Nodes {
		var props sql.NullString
		if len(n.Properties) > 0 {
			data, merr := json.Marshal(n.Properties)
			if merr != nil {
				err = fmt.Errorf("encoding properties of %s: %w", n.ID, merr)
				return err
			}
			props = sql.NullString{String: string(data), Valid: true}
		}
		if _, err = nodeStmt.Exec(name, i, n.ID, n.Label, n.Type, props); err != nil {
			return fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO snapshot_edges (snapshot, position, from_id, to_id, type, weight)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for i, e := range s.Edges {
		if _, err = edgeStmt.Exec(name, i, e.From, e.To, e.Type, e.Weight); err != nil {
			return fmt.Errorf("inserting edge %s: %w", e.Key(), err)
		}
	}

	if _, err = tx.Exec(`
		INSERT INTO snapshots (name, saved_at, node_count, edge_count) VALUES (?, ?, ?, ?)
	`, name, d.timestamp(), len(s.Nodes), len(s.Edges)); err != nil {
		return fmt.Errorf("recording snapshot %s: %w", name, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot %s: %w", name, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under name in its saved order.
func (d *DB) LoadSnapshot(name string) (graph.Snapshot, error) {
	if _, err := d.SnapshotInfo(name); err != nil {
		return graph.Snapshot{}, err
	}

	s := graph.Snapshot{Nodes: []graph.Node{}, Edges: []graph.Edge{}}

	rows, err := d.db.Query(`
		SELECT id, label, type, properties_json FROM snapshot_nodes
		WHERE snapshot = ? ORDER BY position
	`, name)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("querying snapshot nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n graph.Node
		var props sql.NullString
		if err := rows.Scan(&n.ID, &n.Label, &n.Type, &props); err != nil {
			return graph.Snapshot{}, fmt.Errorf("scanning node: %w", err)
		}
		if props.Valid && props.String != "" {
			if err := json.Unmarshal([]byte(props.String), &n.Properties); err != nil {
				return graph.Snapshot{}, fmt.Errorf("decoding properties of %s: %w", n.ID, err)
			}
		}
		s.Nodes = append(s.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return graph.Snapshot{}, err
	}

	edgeRows, err := d.db.Query(`
		SELECT from_id, to_id, type, weight FROM snapshot_edges
		WHERE snapshot = ? ORDER BY position
	`, name)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("querying snapshot edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e graph.Edge
		if err := edgeRows.Scan(&e.From, &e.To, &e.Type, &e.Weight); err != nil {
			return graph.Snapshot{}, fmt.Errorf("scanning edge: %w", err)
		}
		s.Edges = append(s.Edges, e)
	}
	return s, edgeRows.Err()
}

// SnapshotInfo returns metadata for the named snapshot.
func (d *DB) SnapshotInfo(name string) (SnapshotInfo, error) {
	info := SnapshotInfo{Name: name}
	var savedAt string
	err := d.db.QueryRow(`
		SELECT saved_at, node_count, edge_count FROM snapshots WHERE name = ?
	`, name).Scan(&savedAt, &info.NodeCount, &info.EdgeCount)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	info.SavedAt, _ = time.Parse(time.RFC3339, savedAt)
	return info, nil
}
