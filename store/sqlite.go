// ABOUTME: SQLite-backed run history: one row per completed pipeline run.
// ABOUTME: Implements the pipeline's RunRecorder; rows are keyed by ULID so listing is chronological.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/2389-research/conclave/pipeline"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Run is one persisted pipeline run.
type Run struct {
	RunID         string
	MarketID      string
	Question      string
	Outcome       string
	Conviction    decimal.Decimal
	OrderResponse string
	SectionCount  int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// RunStore is a SQLite-backed history of pipeline runs.
type RunStore struct {
	db *sql.DB
}

// Open opens or creates the run history database at the given path.
func Open(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			market_id TEXT NOT NULL,
			question TEXT NOT NULL,
			outcome TEXT NOT NULL,
			conviction TEXT NOT NULL,
			order_response TEXT NOT NULL,
			section_count INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &RunStore{db: db}, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// RecordRun persists one completed pipeline run under a fresh ULID.
func (s *RunStore) RecordRun(ctx context.Context, rec pipeline.RunRecord) error {
	runID := ulid.Make().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, market_id, question, outcome, conviction,
			order_response, section_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.MarketID,
		rec.Question,
		rec.Outcome,
		rec.Conviction.String(),
		rec.OrderResponse,
		rec.SectionCount,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, market_id, question, outcome, conviction,
			order_response, section_count, started_at, finished_at
		FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var conviction, startedAt, finishedAt string
		if err := rows.Scan(&r.RunID, &r.MarketID, &r.Question, &r.Outcome,
			&conviction, &r.OrderResponse, &r.SectionCount, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.Conviction, err = decimal.NewFromString(conviction); err != nil {
			return nil, fmt.Errorf("run %s conviction %q: %w", r.RunID, conviction, err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("run %s started_at %q: %w", r.RunID, startedAt, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, fmt.Errorf("run %s finished_at %q: %w", r.RunID, finishedAt, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
