package store

import (
	"context"
	"database/sql"
	"fmt"
)

// FolderRepo stores the raw folder payload of each owner. The payload is
// opaque here; decoding and recovery belong to the folders package.
type FolderRepo struct{}

// Save replaces the payload for an owner.
func (r *FolderRepo) Save(ctx context.Context, db *sql.DB, owner string, payload []byte, updatedAt int64) error {
	const q = `INSERT INTO folder_state (owner, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(owner) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, q, owner, string(payload), updatedAt); err != nil {
		return fmt.Errorf("save folders: %w", err)
	}
	return nil
}

// Load returns the payload for an owner, or nil if none was saved.
func (r *FolderRepo) Load(ctx context.Context, db *sql.DB, owner string) ([]byte, error) {
	var payload string
	err := db.QueryRowContext(ctx, `SELECT payload FROM folder_state WHERE owner = ?`, owner).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load folders: %w", err)
	}
	return []byte(payload), nil
}
