package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

// ProcessRepo handles persistence for Process summary rows.
type ProcessRepo struct{}

// CreateTx inserts a new process within an existing transaction.
func (r *ProcessRepo) CreateTx(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	const q = `INSERT INTO processes (id, numero, objeto, gerencia, status, current_stage, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		p.ID,
		p.Number,
		p.Object,
		p.Unit,
		string(p.Status),
		p.CurrentStage,
		p.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateProcess
		}
		return fmt.Errorf("create process: %w", err)
	}
	return nil
}

// UpdateProgressTx sets the current stage and status of a process.
func (r *ProcessRepo) UpdateProgressTx(ctx context.Context, tx *sql.Tx, id string, currentStage int, status domain.ProcessStatus) error {
	const q = `UPDATE processes SET current_stage = ?, status = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, currentStage, string(status), id)
	if err != nil {
		return fmt.Errorf("update process progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrProcessNotFound
	}
	return nil
}

// GetByID retrieves a process by its ID.
func (r *ProcessRepo) GetByID(ctx context.Context, db *sql.DB, id string) (*domain.Process, error) {
	const q = `SELECT id, numero, objeto, gerencia, status, current_stage, created_at
FROM processes WHERE id = ?`

	p, err := scanProcess(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrProcessNotFound
		}
		return nil, fmt.Errorf("get process: %w", err)
	}
	return p, nil
}

// List returns all processes, newest first.
func (r *ProcessRepo) List(ctx context.Context, db *sql.DB) ([]domain.Process, error) {
	const q = `SELECT id, numero, objeto, gerencia, status, current_stage, created_at
FROM processes
ORDER BY created_at DESC, id ASC`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()

	var out []domain.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcess(row rowScanner) (*domain.Process, error) {
	var p domain.Process
	var status string
	var created int64
	if err := row.Scan(&p.ID, &p.Number, &p.Object, &p.Unit, &status, &p.CurrentStage, &created); err != nil {
		return nil, err
	}
	p.Status = domain.ProcessStatus(status)
	p.CreatedAt = time.Unix(created, 0).UTC()
	return &p, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
