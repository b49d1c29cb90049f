package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/licitaflow/stagegate/internal/domain"
)

// StageRepo handles persistence for Stage snapshots.
type StageRepo struct{}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const stageColumns = `process_id, numero, nome, status, posicao, data_inicio, data_fim, flags_json, state_version`

// CreateTx inserts a stage within an existing transaction.
func (r *StageRepo) CreateTx(ctx context.Context, tx *sql.Tx, s domain.Stage, updatedAt int64) error {
	flags, err := json.Marshal(s.StageFlags)
	if err != nil {
		return fmt.Errorf("encode stage flags: %w", err)
	}
	const q = `INSERT INTO stages (process_id, numero, nome, status, posicao, data_inicio, data_fim, flags_json, state_version, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`
	_, err = tx.ExecContext(ctx, q,
		s.ProcessID,
		s.Number,
		s.Name,
		string(s.Status),
		s.Position,
		s.StartDate,
		s.EndDate,
		string(flags),
		updatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateStage
		}
		return fmt.Errorf("create stage: %w", err)
	}
	return nil
}

// UpdateTx writes a stage using optimistic locking on state_version. The
// update only succeeds if the stored version matches s.StateVersion.
func (r *StageRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s domain.Stage, updatedAt int64) error {
	flags, err := json.Marshal(s.StageFlags)
	if err != nil {
		return fmt.Errorf("encode stage flags: %w", err)
	}
	const q = `UPDATE stages SET
		nome = ?,
		status = ?,
		posicao = ?,
		data_inicio = ?,
		data_fim = ?,
		flags_json = ?,
		state_version = state_version + 1,
		updated_at = ?
	WHERE process_id = ? AND numero = ? AND state_version = ?`

	res, err := tx.ExecContext(ctx, q,
		s.Name,
		string(s.Status),
		s.Position,
		s.StartDate,
		s.EndDate,
		string(flags),
		updatedAt,
		s.ProcessID,
		s.Number,
		s.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// SetPositionTx moves a stage to a new display position.
func (r *StageRepo) SetPositionTx(ctx context.Context, tx *sql.Tx, processID string, number, position int, updatedAt int64) error {
	const q = `UPDATE stages SET posicao = ?, state_version = state_version + 1, updated_at = ?
WHERE process_id = ? AND numero = ?`
	res, err := tx.ExecContext(ctx, q, position, updatedAt, processID, number)
	if err != nil {
		return fmt.Errorf("set stage position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrStageNotFound
	}
	return nil
}

// DeleteTx removes a stage.
func (r *StageRepo) DeleteTx(ctx context.Context, tx *sql.Tx, processID string, number int) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM stages WHERE process_id = ? AND numero = ?`, processID, number)
	if err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrStageNotFound
	}
	return nil
}

// Get retrieves one stage of a process.
func (r *StageRepo) Get(ctx context.Context, q Querier, processID string, number int) (*domain.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE process_id = ? AND numero = ?`
	s, err := scanStage(q.QueryRowContext(ctx, query, processID, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrStageNotFound
		}
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return s, nil
}

// ListByProcess returns the stages of a process in display order.
func (r *StageRepo) ListByProcess(ctx context.Context, q Querier, processID string) ([]domain.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE process_id = ? ORDER BY posicao ASC, numero ASC`
	rows, err := q.QueryContext(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, *s)
	}
	return stages, rows.Err()
}

func scanStage(row rowScanner) (*domain.Stage, error) {
	var s domain.Stage
	var status, flags string
	if err := row.Scan(&s.ProcessID, &s.Number, &s.Name, &status, &s.Position,
		&s.StartDate, &s.EndDate, &flags, &s.StateVersion); err != nil {
		return nil, err
	}
	s.Status = domain.StageStatus(status)
	if err := json.Unmarshal([]byte(flags), &s.StageFlags); err != nil {
		return nil, fmt.Errorf("decode stage flags: %w", err)
	}
	return &s, nil
}
