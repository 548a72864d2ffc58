// Package archive persists one row per completed run in a local SQLite
// database, so verdicts survive the process and trends across runs can
// be compared later.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 20

// Record is one archived run. Summary carries the full run summary as
// JSON; the flat columns exist so listings never need to unmarshal it.
type Record struct {
	ID         int64
	RunID      string
	Scenario   string
	StartedAt  time.Time
	Duration   time.Duration
	Iterations int64
	Requests   int64
	ErrorRate  float64
	CheckRate  float64
	P95        float64
	Passed     bool
	Summary    string
}

// Store is the run archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	// SQLite has a single writer; a second pooled connection only buys
	// lock errors.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to archive database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		scenario TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		requests INTEGER NOT NULL,
		error_rate REAL NOT NULL,
		check_rate REAL NOT NULL,
		p95_ms REAL NOT NULL,
		passed INTEGER NOT NULL,
		summary TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing archive schema: %w", err)
	}
	return nil
}

// Save inserts one run record and fills in its assigned ID.
func (s *Store) Save(rec *Record) error {
	query := `
		INSERT INTO runs (
			run_id, scenario, started_at, duration_ms, iterations,
			requests, error_rate, check_rate, p95_ms, passed, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		rec.RunID,
		rec.Scenario,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.Duration.Milliseconds(),
		rec.Iterations,
		rec.Requests,
		rec.ErrorRate,
		rec.CheckRate,
		rec.P95,
		rec.Passed,
		rec.Summary,
	)
	if err != nil {
		return fmt.Errorf("saving run record: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// List returns the most recent runs, newest first. A non-positive limit
// applies the default of 20.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, run_id, scenario, started_at, duration_ms, iterations,
		       requests, error_rate, check_rate, p95_ms, passed, summary
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var startedAt string
		var durationMs int64

		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Scenario,
			&startedAt,
			&durationMs,
			&rec.Iterations,
			&rec.Requests,
			&rec.ErrorRate,
			&rec.CheckRate,
			&rec.P95,
			&rec.Passed,
			&rec.Summary,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			rec.StartedAt = t
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond

		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of archived runs.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return count, nil
}

// Clear deletes every archived run.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("clearing archive: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
