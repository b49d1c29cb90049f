// Package store provides SQLite-backed persistence for processes, stages,
// timeline events and folder state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS processes (
	id            TEXT PRIMARY KEY,
	numero        TEXT NOT NULL DEFAULT '',
	objeto        TEXT NOT NULL DEFAULT '',
	gerencia      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'em_andamento',
	current_stage INTEGER NOT NULL DEFAULT 1,
	created_at    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_processes_status ON processes(status);

CREATE TABLE IF NOT EXISTS stages (
	process_id    TEXT NOT NULL,
	numero        INTEGER NOT NULL,
	nome          TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pendente',
	posicao       INTEGER NOT NULL DEFAULT 0,
	data_inicio   TEXT NOT NULL DEFAULT '',
	data_fim      TEXT NOT NULL DEFAULT '',
	flags_json    TEXT NOT NULL DEFAULT '{}',
	state_version INTEGER NOT NULL DEFAULT 1,
	updated_at    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (process_id, numero)
);
CREATE INDEX IF NOT EXISTS idx_stages_process_pos ON stages(process_id, posicao);

CREATE TABLE IF NOT EXISTS stage_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	process_id    TEXT NOT NULL,
	stage_number  INTEGER NOT NULL,
	snapshot_json TEXT NOT NULL DEFAULT '{}',
	checksum      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_process_stage ON stage_snapshots(process_id, stage_number);

CREATE TABLE IF NOT EXISTS timeline_events (
	id               TEXT PRIMARY KEY,
	process_id       TEXT NOT NULL,
	stage_number     INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'info',
	title            TEXT NOT NULL,
	author_name      TEXT NOT NULL DEFAULT '',
	author_avatar    TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	attachments_json TEXT NOT NULL DEFAULT '[]',
	created_at_ms    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timeline_process ON timeline_events(process_id, created_at_ms);

CREATE TABLE IF NOT EXISTS audit_records (
	id            TEXT PRIMARY KEY,
	process_id    TEXT NOT NULL,
	category      TEXT NOT NULL,
	actor         TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	request_json  TEXT NOT NULL DEFAULT '{}',
	decision_json TEXT NOT NULL DEFAULT '{}',
	severity      TEXT NOT NULL DEFAULT 'info',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_process ON audit_records(process_id);

CREATE TABLE IF NOT EXISTS folder_state (
	owner      TEXT PRIMARY KEY,
	payload    TEXT NOT NULL DEFAULT '[]',
	updated_at INTEGER NOT NULL DEFAULT 0
);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration. The parent directory is created if needed.
func NewDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
