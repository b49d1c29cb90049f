package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

// EventRepo handles persistence for TimelineEvent records.
type EventRepo struct{}

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append inserts a timeline event, either directly or within a transaction.
func (r *EventRepo) Append(ctx context.Context, x Execer, ev domain.TimelineEvent) error {
	attachments := ev.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	attJSON, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	const q = `INSERT INTO timeline_events (id, process_id, stage_number, status, title, author_name, author_avatar, description, attachments_json, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = x.ExecContext(ctx, q,
		ev.ID,
		ev.ProcessID,
		ev.StageNumber,
		string(ev.Status),
		ev.Title,
		ev.Author.Name,
		ev.Author.AvatarURL,
		ev.Description,
		string(attJSON),
		ev.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}
	return nil
}

// ListByProcess returns the events of a process in insertion-time order.
// A stageNumber greater than zero restricts the result to that stage.
func (r *EventRepo) ListByProcess(ctx context.Context, db *sql.DB, processID string, stageNumber int) ([]domain.TimelineEvent, error) {
	q := `SELECT id, process_id, stage_number, status, title, author_name, author_avatar, description, attachments_json, created_at_ms
FROM timeline_events
WHERE process_id = ?`
	args := []any{processID}
	if stageNumber > 0 {
		q += ` AND stage_number = ?`
		args = append(args, stageNumber)
	}
	q += ` ORDER BY created_at_ms ASC, id ASC`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var e domain.TimelineEvent
		var status, attJSON string
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.ProcessID, &e.StageNumber, &status, &e.Title,
			&e.Author.Name, &e.Author.AvatarURL, &e.Description, &attJSON, &createdMs); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		e.Status = domain.EventStatus(status)
		e.CreatedAt = time.UnixMilli(createdMs).UTC()
		if err := json.Unmarshal([]byte(attJSON), &e.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
		if len(e.Attachments) == 0 {
			e.Attachments = nil
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
