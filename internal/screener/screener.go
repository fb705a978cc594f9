// Package screener runs the squeeze/breakout gate across a symbol
// universe with a worker pool and reports per-symbol outcomes.
package screener

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"squeeze-screener/internal/frame"
	"squeeze-screener/internal/gate"
	"squeeze-screener/internal/logging"
	"squeeze-screener/internal/marketdata"
	"squeeze-screener/internal/recorder"
	"squeeze-screener/internal/strategy"
)

// Row statuses. A skipped symbol never aborts the batch.
const (
	StatusOK          = "ok"
	StatusSkipFetch   = "skip_fetch"
	StatusSkipShort   = "skip_short_or_bad"
	StatusSkipResolve = "skip_resolve"
)

// Config tunes one screening run.
type Config struct {
	WorkerCount int           // concurrent fetch+evaluate workers, default 4
	Days        int           // history window to request, default 300
	MinRows     int           // minimum bars before gating, default 120
	Timeout     time.Duration // per-run deadline, default 10m
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.Days <= 0 {
		c.Days = 300
	}
	if c.MinRows <= 0 {
		c.MinRows = 120
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	return c
}

// Row is one symbol's outcome in a run.
type Row struct {
	Symbol string
	Status string
	Reason string
	OK     bool
	Score  float64
	Result gate.Result
}

// RunResult is a completed run: every row, plus the passed symbols in
// score order.
type RunResult struct {
	RunID      string
	Mode       gate.Mode
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       []Row
	Passed     []string
}

// Screener wires the fetcher, gate, strategy and recorder together.
type Screener struct {
	fetcher marketdata.Fetcher
	params  gate.Params
	strat   *strategy.Breakout
	rec     recorder.Recorder
	cfg     Config
	log     *logging.Logger
}

// New builds a Screener. rec may be nil to disable persistence.
func New(fetcher marketdata.Fetcher, params gate.Params, strat *strategy.Breakout, rec recorder.Recorder, cfg Config) *Screener {
	if rec == nil {
		rec = recorder.Noop{}
	}
	return &Screener{
		fetcher: fetcher,
		params:  params.WithDefaults(),
		strat:   strat,
		rec:     rec,
		cfg:     cfg.withDefaults(),
		log:     logging.WithComponent("screener"),
	}
}

// Run screens the universe and returns every row plus the passed
// symbols sorted by descending strategy score.
func (s *Screener) Run(ctx context.Context, symbols []string) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	startedAt := time.Now()
	runID := uuid.NewString()
	s.log.Info("starting screen", "run_id", runID, "symbols", len(symbols), "mode", string(s.params.Mode))

	symbolChan := make(chan string, len(symbols))
	resultChan := make(chan Row, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WorkerCount; i++ {
		wg.Add(1)
		go s.worker(ctx, symbolChan, resultChan, &wg)
	}

	go func() {
		for _, symbol := range symbols {
			select {
			case symbolChan <- symbol:
			case <-ctx.Done():
			}
		}
		close(symbolChan)
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	rowBySymbol := make(map[string]Row, len(symbols))
	for row := range resultChan {
		rowBySymbol[row.Symbol] = row
	}

	// Keep universe order for the report, then rank the passers.
	rows := make([]Row, 0, len(symbols))
	for _, symbol := range symbols {
		if row, ok := rowBySymbol[symbol]; ok {
			rows = append(rows, row)
		}
	}

	passedRows := make([]Row, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if row.Status != StatusOK {
			skipped++
			continue
		}
		if row.OK {
			passedRows = append(passedRows, row)
		}
	}
	sort.SliceStable(passedRows, func(i, j int) bool {
		return passedRows[i].Score > passedRows[j].Score
	})
	passed := make([]string, len(passedRows))
	for i, row := range passedRows {
		passed[i] = row.Symbol
	}

	res := &RunResult{
		RunID:      runID,
		Mode:       s.params.Mode,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Rows:       rows,
		Passed:     passed,
	}

	if err := s.record(ctx, res, skipped); err != nil {
		s.log.Error("recording run failed", "run_id", runID, "error", err)
	}

	s.log.Info("screen finished",
		"run_id", runID,
		"passed", len(passed),
		"skipped", skipped,
		"duration", time.Since(startedAt).String())
	return res, nil
}

func (s *Screener) worker(ctx context.Context, symbols <-chan string, results chan<- Row, wg *sync.WaitGroup) {
	defer wg.Done()
	for symbol := range symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- s.evaluate(ctx, symbol)
	}
}

// evaluate runs fetch, gate and scoring for one symbol. Failures come
// back as skip rows with a reason.
func (s *Screener) evaluate(ctx context.Context, symbol string) Row {
	table, err := s.fetcher.FetchDaily(ctx, symbol, s.cfg.Days)
	if err != nil {
		s.log.Debug("fetch failed", "symbol", symbol, "error", err)
		return Row{Symbol: symbol, Status: StatusSkipFetch, Reason: err.Error()}
	}
	if len(table.Dates) < s.cfg.MinRows {
		return Row{Symbol: symbol, Status: StatusSkipShort, Reason: "short history"}
	}

	f, err := frame.FromTable(table)
	if err != nil {
		s.log.Warn("column resolution failed", "symbol", symbol, "error", err)
		return Row{Symbol: symbol, Status: StatusSkipResolve, Reason: err.Error()}
	}

	result := gate.EvaluateFrame(f, s.params)
	if !result.OK {
		return Row{Symbol: symbol, Status: StatusOK, Reason: result.Reason, Result: result}
	}

	ft := s.strat.Compute(f)
	score := s.strat.Score(f, ft, f.Len()-1)

	return Row{
		Symbol: symbol,
		Status: StatusOK,
		OK:     result.CandidateOK,
		Score:  score,
		Result: result,
	}
}

func (s *Screener) record(ctx context.Context, res *RunResult, skipped int) error {
	rows := make([]recorder.ResultRow, len(res.Rows))
	for i, row := range res.Rows {
		rows[i] = recorder.ResultRow{
			Symbol:        row.Symbol,
			Status:        row.Status,
			OK:            row.OK,
			IsSqueeze:     row.Result.IsSqueeze,
			Bullish:       row.Result.Bullish,
			BreakoutHH20:  row.Result.BreakoutHH20,
			BreakoutHH50:  row.Result.BreakoutHH50,
			BBWidthPctile: row.Result.BBWidthPctile,
			ATRPctile:     row.Result.ATRPctile,
			Score:         row.Score,
			Reason:        row.Reason,
		}
	}
	return s.rec.RecordRun(ctx, recorder.RunSummary{
		RunID:        res.RunID,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		Mode:         string(res.Mode),
		UniverseSize: len(res.Rows),
		Passed:       len(res.Passed),
		Skipped:      skipped,
	}, rows)
}
