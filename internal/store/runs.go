package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-sales-etl/internal/model"
)

// RunStore persists pipeline runs, their status events and quality
// reports to SQLite for audit. It implements both the orchestrator's
// RunObserver (snapshot per transition) and ReportSink (write-once
// report) collaborator contracts.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the run database.
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	// a single connection keeps concurrent snapshot writes and status
	// reads from tripping SQLITE_BUSY
	db.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source_type TEXT,
			source_url TEXT,
			status TEXT,
			snapshot TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			kind TEXT,
			message TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_reports (
			run_id TEXT PRIMARY KEY,
			report TEXT,
			created_at DATETIME
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init run store schema: %w", err)
		}
	}
	return &RunStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *RunStore) Close() error { return s.db.Close() }

// OnTransition upserts the run snapshot after every state transition.
// Stage errors are copied out on terminal transitions so they stay
// queryable without parsing the snapshot.
func (s *RunStore) OnTransition(run model.PipelineRun) {
	snapshot, err := json.Marshal(run)
	if err != nil {
		log.Printf("run store: marshal snapshot for %s: %v", run.RunID, err)
		return
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO runs (id, source_type, source_url, status, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		run.RunID, run.Source.Type, run.Source.URL, string(run.Status), string(snapshot), run.StartedAt, now)
	if err != nil {
		log.Printf("run store: save snapshot for %s: %v", run.RunID, err)
		return
	}

	if run.Status.Terminal() {
		for _, se := range run.Errors {
			if _, err := s.db.Exec(
				`INSERT INTO run_errors (run_id, stage, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
				run.RunID, se.Stage, string(se.Kind), se.Message, se.At); err != nil {
				log.Printf("run store: save error for %s: %v", run.RunID, err)
			}
		}
	}
}

// SaveReport persists the finished quality report. Write-once per run:
// a duplicate write is a no-op.
func (s *RunStore) SaveReport(runID string, report model.QualityReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO run_reports (run_id, report, created_at) VALUES (?, ?, ?)`,
		runID, string(payload), time.Now().UTC())
	return err
}

// GetRun returns the last persisted snapshot for a run.
func (s *RunStore) GetRun(runID string) (model.PipelineRun, error) {
	var snapshot string
	err := s.db.QueryRow(`SELECT snapshot FROM runs WHERE id = ?`, runID).Scan(&snapshot)
	if err != nil {
		return model.PipelineRun{}, err
	}
	var run model.PipelineRun
	if err := json.Unmarshal([]byte(snapshot), &run); err != nil {
		return model.PipelineRun{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return run, nil
}

// RunSummary is the listing row for the API.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListRuns returns all runs, newest first.
func (s *RunStore) ListRuns() ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, source_url, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Source, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetReport returns the persisted quality report for a run.
func (s *RunStore) GetReport(runID string) (model.QualityReport, error) {
	var payload string
	err := s.db.QueryRow(`SELECT report FROM run_reports WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		return model.QualityReport{}, err
	}
	var report model.QualityReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return model.QualityReport{}, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

// GetRunErrors returns the recorded stage errors for a run.
func (s *RunStore) GetRunErrors(runID string) ([]model.StageError, error) {
	rows, err := s.db.Query(
		`SELECT stage, kind, message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StageError
	for rows.Next() {
		var se model.StageError
		var kind string
		if err := rows.Scan(&se.Stage, &kind, &se.Message, &se.At); err != nil {
			return nil, err
		}
		se.Kind = model.ErrorKind(kind)
		out = append(out, se)
	}
	return out, rows.Err()
}
