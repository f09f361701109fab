package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/recall/internal/ttl"
)

// SnapshotInfo describes one stored snapshot without its payload.
type SnapshotInfo struct {
	Key       string `json:"key"`
	Size      int    `json:"size"`
	UpdatedAt int64  `json:"updated_at"`
}

// Snapshots returns a ttl.Backend that keeps store snapshots in the
// ttl_snapshots table.
func (db *DB) Snapshots() *SnapshotBackend {
	return &SnapshotBackend{db: db}
}

// SnapshotBackend implements ttl.Backend on top of DB.
type SnapshotBackend struct {
	db *DB
}

var _ ttl.Backend = (*SnapshotBackend)(nil)

// Read returns the payload stored under key, or ttl.ErrNoSnapshot.
func (b *SnapshotBackend) Read(key string) ([]byte, error) {
	var payload []byte
	err := b.db.QueryRow("SELECT payload FROM ttl_snapshots WHERE key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ttl.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	return payload, nil
}

// Write replaces the payload stored under key.
func (b *SnapshotBackend) Write(key string, data []byte) error {
	now := time.Now().UnixMilli()
	_, err := b.db.Exec(`
		INSERT INTO ttl_snapshots (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, key, data, now)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return nil
}

// ListSnapshots returns every stored snapshot ordered by key.
func (db *DB) ListSnapshots() ([]SnapshotInfo, error) {
	rows, err := db.Query(`
		SELECT key, length(payload), updated_at
		FROM ttl_snapshots ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var s SnapshotInfo
		if err := rows.Scan(&s.Key, &s.Size, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
