package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists runs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so reporting tools can read while a run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{
		db:     db,
		logger: logger.With().Str("component", "SQLiteRecorder").Logger(),
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id        TEXT PRIMARY KEY,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER NOT NULL,
			mode          TEXT,
			universe_size INTEGER,
			passed        INTEGER,
			skipped       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS results (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			status          TEXT,
			ok              INTEGER,
			is_squeeze      INTEGER,
			bullish         INTEGER,
			breakout_hh20   INTEGER,
			breakout_hh50   INTEGER,
			bb_width_pctile REAL,
			atr_pctile      REAL,
			score           REAL,
			reason          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_symbol ON results(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// nullable maps NaN to SQL NULL.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// RecordRun stores a run summary and its result rows in one transaction.
func (r *SQLiteRecorder) RecordRun(ctx context.Context, run RunSummary, rows []ResultRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, mode, universe_size, passed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Mode,
		run.UniverseSize, run.Passed, run.Skipped,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, symbol, status, ok, is_squeeze, bullish,
		 breakout_hh20, breakout_hh50, bb_width_pctile, atr_pctile, score, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			run.RunID, row.Symbol, row.Status, row.OK, row.IsSqueeze, row.Bullish,
			row.BreakoutHH20, row.BreakoutHH50,
			nullable(row.BBWidthPctile), nullable(row.ATRPctile), nullable(row.Score),
			row.Reason,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", row.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Info().
		Str("run_id", run.RunID).
		Int("rows", len(rows)).
		Int("passed", run.Passed).
		Msg("run recorded")
	return nil
}

// RecentRuns returns the most recent run summaries, newest first.
func (r *SQLiteRecorder) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, mode, universe_size, passed, skipped
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started, finished int64
		if err := rows.Scan(&rs.RunID, &started, &finished, &rs.Mode,
			&rs.UniverseSize, &rs.Passed, &rs.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.StartedAt = unixTime(started)
		rs.FinishedAt = unixTime(finished)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func unixTime(ts int64) time.Time { return time.Unix(ts, 0).UTC() }

// Close closes the underlying database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
