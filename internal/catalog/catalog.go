package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"retailetl/internal/pipeline"
)

// ── Run Catalog ─────────────────────────────────────────────
// Persists batch run history in a local SQLite file, one row per
// run plus one per processed file, so past runs can be inspected
// without digging through logs.

// Store wraps the SQLite catalog database.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the catalog database at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer — limit to a single connection.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the catalog database.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL DEFAULT 'manual',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			files_loaded INTEGER NOT NULL DEFAULT 0,
			files_partial INTEGER NOT NULL DEFAULT 0,
			files_skipped INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS run_files (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id),
			path TEXT NOT NULL,
			format TEXT NOT NULL,
			identifier TEXT NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			errors_json TEXT NOT NULL DEFAULT 'null'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_files_run ON run_files(run_id)`,
	}

	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}
	return nil
}

// Run is one recorded batch run.
type Run struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"` // "manual" | "schedule" | "file_watch"
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Loaded     int       `json:"loaded"`
	Partial    int       `json:"partial"`
	Skipped    int       `json:"skipped"`
}

// RunFile is the recorded outcome for one file within a run.
type RunFile struct {
	ID         string   `json:"id"`
	RunID      string   `json:"runId"`
	Path       string   `json:"path"`
	Format     string   `json:"format"`
	Identifier string   `json:"identifier"`
	Rows       int      `json:"rows"`
	Status     string   `json:"status"`
	Errors     []string `json:"errors,omitempty"`
}

// RecordRun stores a batch result under a fresh run ID.
func (s *Store) RecordRun(trigger string, result *pipeline.RunResult) (*Run, error) {
	loaded, partial, skipped := result.Counts()
	run := &Run{
		ID:         uuid.New().String(),
		Trigger:    trigger,
		StartedAt:  result.Started,
		FinishedAt: result.Started.Add(result.Duration),
		Loaded:     loaded,
		Partial:    partial,
		Skipped:    skipped,
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, trigger_type, started_at, finished_at, files_loaded, files_partial, files_skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.StartedAt, run.FinishedAt, run.Loaded, run.Partial, run.Skipped,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	for _, f := range result.Files {
		errsJSON, _ := json.Marshal(f.Errors)
		_, err := tx.Exec(
			`INSERT INTO run_files (id, run_id, path, format, identifier, row_count, status, errors_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), run.ID, f.Path, string(f.Format), f.Identifier, f.Rows, string(f.Status), string(errsJSON),
		)
		if err != nil {
			return nil, fmt.Errorf("insert run file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[CATALOG] recorded run %s (%d files)", run.ID, len(result.Files))
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.conn.Query(
		`SELECT id, trigger_type, started_at, finished_at, files_loaded, files_partial, files_skipped
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Trigger, &r.StartedAt, &r.FinishedAt, &r.Loaded, &r.Partial, &r.Skipped); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListRunFiles returns the per-file outcomes of one run in insertion order.
func (s *Store) ListRunFiles(runID string) ([]RunFile, error) {
	rows, err := s.conn.Query(
		`SELECT id, run_id, path, format, identifier, row_count, status, errors_json
		 FROM run_files WHERE run_id = ? ORDER BY rowid ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var f RunFile
		var errsJSON string
		if err := rows.Scan(&f.ID, &f.RunID, &f.Path, &f.Format, &f.Identifier, &f.Rows, &f.Status, &errsJSON); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(errsJSON), &f.Errors)
		files = append(files, f)
	}
	return files, rows.Err()
}
