// Package recorder persists screening runs for later inspection.
package recorder

import (
	"context"
	"time"
)

// RunSummary describes one completed screening run.
type RunSummary struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Mode         string
	UniverseSize int
	Passed       int
	Skipped      int
}

// ResultRow is one symbol's outcome within a run.
type ResultRow struct {
	Symbol        string
	Status        string // "ok", "skip_fetch", "skip_short_or_bad", "skip_resolve"
	OK            bool
	IsSqueeze     bool
	Bullish       bool
	BreakoutHH20  bool
	BreakoutHH50  bool
	BBWidthPctile float64
	ATRPctile     float64
	Score         float64
	Reason        string
}

// Recorder stores run summaries and per-symbol results.
type Recorder interface {
	RecordRun(ctx context.Context, run RunSummary, rows []ResultRow) error
	Close() error
}

// Noop discards everything. Used when persistence is disabled.
type Noop struct{}

func (Noop) RecordRun(context.Context, RunSummary, []ResultRow) error { return nil }
func (Noop) Close() error                                             { return nil }
