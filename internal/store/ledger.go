package store

import (
	"context"
	"fmt"
	"os"
	"time"
	"wisgen/internal/core"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// RunKind names the stage a ledger entry belongs to.
type RunKind string

const (
	RunDaily   RunKind = "daily"
	RunTrends  RunKind = "trends"
	RunWeekly  RunKind = "weekly"
	RunProcess RunKind = "process"
)

// Run status values.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run is one recorded stage execution.
type Run struct {
	ID         string    `json:"id" db:"id"`
	Kind       RunKind   `json:"kind" db:"kind"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	Status     string    `json:"status" db:"status"`
	Output     string    `json:"output,omitempty" db:"output"`
	Error      string    `json:"error,omitempty" db:"error"`
	core.RunStats
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Ledger is the SQLite-backed audit trail of pipeline runs.
// It is never consulted when selecting messages.
type Ledger struct {
	db   *sqlx.DB
	path string
}

// OpenLedger opens (and creates if needed) the ledger of layout.
func OpenLedger(layout Layout) (*Ledger, error) {
	if err := os.MkdirAll(layout.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := layout.Ledger()
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ledger := &Ledger{
		db:   db,
		path: dbPath,
	}

	if err := ledger.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return ledger, nil
}

// initialize creates the runs table
func (l *Ledger) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		candidates INTEGER NOT NULL DEFAULT 0,
		fetch_failures INTEGER NOT NULL DEFAULT 0,
		decode_failures INTEGER NOT NULL DEFAULT 0,
		dropped INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		saved INTEGER NOT NULL DEFAULT 0,
		summarized INTEGER NOT NULL DEFAULT 0,
		synthesis_failures INTEGER NOT NULL DEFAULT 0
	);`

	index := `CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at);`

	for _, stmt := range []string{runsTable, index} {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record stores run, assigning an ID when it has none.
func (l *Ledger) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	query := `
	INSERT OR REPLACE INTO runs
	(id, kind, started_at, finished_at, status, output, error,
	 candidates, fetch_failures, decode_failures, dropped, rejected, saved, summarized, synthesis_failures)
	VALUES (:id, :kind, :started_at, :finished_at, :status, :output, :error,
	 :candidates, :fetch_failures, :decode_failures, :dropped, :rejected, :saved, :summarized, :synthesis_failures)`

	if _, err := l.db.NamedExecContext(ctx, query, run); err != nil {
		return run, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	query := `SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`
	if err := l.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return runs, nil
}

// Stats summarizes the ledger.
type Stats struct {
	TotalRuns  int `db:"total_runs"`
	FailedRuns int `db:"failed_runs"`
}

// Stats returns run counts.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	query := `SELECT COUNT(*) AS total_runs,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed_runs
		FROM runs`
	if err := l.db.GetContext(ctx, &stats, query, StatusFailed); err != nil {
		return Stats{}, fmt.Errorf("failed to get ledger stats: %w", err)
	}
	return stats, nil
}
