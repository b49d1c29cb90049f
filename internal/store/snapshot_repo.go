package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/licitaflow/stagegate/internal/domain"
)

// SnapshotRepo handles persistence for StageSnapshot records.
type SnapshotRepo struct{}

// SaveTx inserts a stage snapshot within an existing transaction.
func (r *SnapshotRepo) SaveTx(ctx context.Context, tx *sql.Tx, snap domain.StageSnapshot) error {
	const q = `INSERT INTO stage_snapshots (process_id, stage_number, snapshot_json, checksum, created_at)
VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		snap.ProcessID,
		snap.StageNumber,
		snap.SnapshotJSON,
		snap.Checksum,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for a stage of a process.
// Returns nil if no snapshot exists.
func (r *SnapshotRepo) GetLatest(ctx context.Context, db *sql.DB, processID string, stageNumber int) (*domain.StageSnapshot, error) {
	const q = `SELECT id, process_id, stage_number, snapshot_json, checksum, created_at
FROM stage_snapshots
WHERE process_id = ? AND stage_number = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

	row := db.QueryRowContext(ctx, q, processID, stageNumber)

	var s domain.StageSnapshot
	err := row.Scan(&s.ID, &s.ProcessID, &s.StageNumber, &s.SnapshotJSON, &s.Checksum, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return &s, nil
}
