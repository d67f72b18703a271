package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetPreference returns the stored value for key. The boolean is false when
// nothing has been stored.
func (d *DB) GetPreference(key string) (string, bool, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference stores value under key, replacing any previous value.
func (d *DB) SetPreference(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, d.timestamp())
	if err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}

// DeletePreference removes key. Missing keys are not an error.
func (d *DB) DeletePreference(key string) error {
	if _, err := d.db.Exec(`DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting preference %s: %w", key, err)
	}
	return nil
}

// Preferences returns every stored preference.
func (d *DB) Preferences() (map[string]string, error) {
	rows, err := d.db.Query(`SELECT key, value FROM preferences ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}
