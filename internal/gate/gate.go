// Package gate decides whether a symbol sits in a compressed,
// about-to-break-out state as of its most recent bar.
//
// The gate is total: for any table with resolvable OHLC columns it returns
// a Result, never panics. Short histories come back as a normal not-ok
// Result with Reason "insufficient_rows". Undefined metrics (NaN) make
// every threshold comparison evaluate false, so the gate fails closed.
package gate

import (
	"math"

	"squeeze-screener/internal/frame"
	"squeeze-screener/internal/indicators"
	"squeeze-screener/internal/patterns"
	"squeeze-screener/internal/series"
)

// Mode selects how the squeeze, breakout and candle signals combine.
type Mode string

const (
	// ModeStrict requires squeeze AND breakout AND a bullish candle.
	ModeStrict Mode = "strict"
	// ModeLoose passes on breakout OR a relaxed squeeze OR the strict
	// candidate, trading precision for recall during prefiltering.
	ModeLoose Mode = "loose"
)

// SqueezePolicy selects which compression predicate defines a squeeze.
type SqueezePolicy string

const (
	// SqueezePercentile: band-width percentile at or below its threshold,
	// OR ATR percentile at or below its (looser) threshold.
	SqueezePercentile SqueezePolicy = "percentile"
	// SqueezeRange: tight N-bar range AND low band-width percentile, OR
	// low band-width percentile AND short/long ATR compression.
	SqueezeRange SqueezePolicy = "range"
)

// Params are the gate tunables. Zero values fall back to the defaults
// documented on each field.
type Params struct {
	BandPeriod  int     // Bollinger window, default 20
	BandStdMult float64 // Bollinger std multiplier, default 2.0
	ATRPeriod   int     // ATR window, default 14

	PctileWindow int // trailing window for percentile ranks, default 252

	BBWidthPctileMax float64 // squeeze threshold on band-width pctile, default 0.15
	ATRPctileMax     float64 // squeeze threshold on ATR pctile, default 0.20

	LoosePctileBBW float64 // relaxed band-width pctile for loose mode, default 0.25
	LoosePctileATR float64 // relaxed ATR pctile for loose mode, default 0.35

	TightRangePct float64 // N-bar range over close ceiling, default 0.06
	ATRRatioMax   float64 // ATR(short)/ATR(long) ceiling, default 0.65
	ATRLongPeriod int     // long ATR window for the ratio, default 100

	LookbackShort int // breakout lookback, default 20
	LookbackLong  int // breakout lookback, default 50

	// MaxRows truncates the history to its most recent rows before
	// evaluation. Default 320; 0 keeps the full series.
	MaxRows int

	// AsOf evaluates the gate as of the bar at this index, discarding
	// every later bar first. Zero or negative means the latest bar.
	AsOf int

	Mode          Mode          // default ModeStrict
	SqueezePolicy SqueezePolicy // default SqueezePercentile

	// ForceDisable keeps diagnostics flowing but forces the gate
	// decision to false. Off by default.
	ForceDisable bool
}

// DefaultParams returns the stock gate settings.
func DefaultParams() Params {
	return Params{
		BandPeriod:       20,
		BandStdMult:      2.0,
		ATRPeriod:        14,
		PctileWindow:     252,
		BBWidthPctileMax: 0.15,
		ATRPctileMax:     0.20,
		LoosePctileBBW:   0.25,
		LoosePctileATR:   0.35,
		TightRangePct:    0.06,
		ATRRatioMax:      0.65,
		ATRLongPeriod:    100,
		LookbackShort:    20,
		LookbackLong:     50,
		MaxRows:          320,
		Mode:             ModeStrict,
		SqueezePolicy:    SqueezePercentile,
	}
}

// WithDefaults fills every zero field with its documented default.
// Evaluate applies it internally; callers that hold Params for
// reporting can apply it themselves.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.BandPeriod <= 0 {
		p.BandPeriod = d.BandPeriod
	}
	if p.BandStdMult <= 0 {
		p.BandStdMult = d.BandStdMult
	}
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = d.ATRPeriod
	}
	if p.PctileWindow <= 0 {
		p.PctileWindow = d.PctileWindow
	}
	if p.BBWidthPctileMax <= 0 {
		p.BBWidthPctileMax = d.BBWidthPctileMax
	}
	if p.ATRPctileMax <= 0 {
		p.ATRPctileMax = d.ATRPctileMax
	}
	if p.LoosePctileBBW <= 0 {
		p.LoosePctileBBW = d.LoosePctileBBW
	}
	if p.LoosePctileATR <= 0 {
		p.LoosePctileATR = d.LoosePctileATR
	}
	if p.TightRangePct <= 0 {
		p.TightRangePct = d.TightRangePct
	}
	if p.ATRRatioMax <= 0 {
		p.ATRRatioMax = d.ATRRatioMax
	}
	if p.ATRLongPeriod <= 0 {
		p.ATRLongPeriod = d.ATRLongPeriod
	}
	if p.LookbackShort <= 0 {
		p.LookbackShort = d.LookbackShort
	}
	if p.LookbackLong <= 0 {
		p.LookbackLong = d.LookbackLong
	}
	if p.Mode == "" {
		p.Mode = d.Mode
	}
	if p.SqueezePolicy == "" {
		p.SqueezePolicy = d.SqueezePolicy
	}
	return p
}

// Result carries the gate decision and its supporting diagnostics.
// OK reports whether the evaluation completed; it is false only for
// short histories, with Reason set. CandidateOK is the gate decision.
// Metric fields are NaN when the underlying window never filled.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Rows   int    `json:"rows"`

	IsSqueeze     bool    `json:"is_squeeze"`
	BBWidth       float64 `json:"bb_width"`
	BBWidthPctile float64 `json:"bb_width_pctile"`
	ATR           float64 `json:"atr"`
	ATRPctile     float64 `json:"atr_pctile"`
	BreakoutHH20  bool    `json:"breakout_hh20"`
	BreakoutHH50  bool    `json:"breakout_hh50"`
	Bullish       bool    `json:"bullish"`
	CandidateOK   bool    `json:"candidate_ok"`
	HasVolume     bool    `json:"has_volume"`
}

// Signals is the compact result shape used by callers that only want
// the three component booleans.
type Signals struct {
	OK            bool `json:"ok"`
	Consolidating bool `json:"consolidating"`
	Breakout      bool `json:"breakout"`
	Bullish       bool `json:"bullish"`
}

// Signals collapses a Result into the compact shape.
func (r Result) Signals() Signals {
	return Signals{
		OK:            r.CandidateOK,
		Consolidating: r.IsSqueeze,
		Breakout:      r.BreakoutHH20 || r.BreakoutHH50,
		Bullish:       r.Bullish,
	}
}

// Evaluate resolves the table's OHLC columns and runs the gate on its
// most recent bar. Column resolution failures surface as an error; all
// other conditions come back inside the Result.
func Evaluate(t *frame.Table, p Params) (Result, error) {
	p = p.WithDefaults()
	rows := len(t.Dates)
	if rows < max(p.BandPeriod, p.ATRPeriod)+2 {
		return Result{Reason: "insufficient_rows", Rows: rows}, nil
	}
	f, err := frame.FromTable(t)
	if err != nil {
		return Result{}, err
	}
	return EvaluateFrame(f, p), nil
}

// EvaluateFrame runs the gate on an already-resolved frame.
func EvaluateFrame(f *frame.Frame, p Params) Result {
	p = p.WithDefaults()
	if p.AsOf > 0 {
		f = f.Truncate(p.AsOf)
	}
	rows := f.Len()
	if rows < max(p.BandPeriod, p.ATRPeriod)+2 {
		return Result{Reason: "insufficient_rows", Rows: rows}
	}
	if p.MaxRows > 0 && rows > p.MaxRows {
		f = f.Tail(p.MaxRows)
	}
	last := f.Len() - 1

	bbw := indicators.BBWidth(f.Close, p.BandPeriod, p.BandStdMult)
	bbwPct := series.PercentileRank(bbw, p.PctileWindow, min(3*p.BandPeriod, p.PctileWindow))

	atr := indicators.ATR(f, p.ATRPeriod)
	atrPct := series.PercentileRank(atr, p.PctileWindow, min(3*p.ATRPeriod, p.PctileWindow))

	bo20 := breakoutAt(f, p.LookbackShort, last)
	bo50 := breakoutAt(f, p.LookbackLong, last)

	lastBBWPct := lastDefined(bbwPct)
	lastATRPct := lastDefined(atrPct)

	var squeeze bool
	switch p.SqueezePolicy {
	case SqueezeRange:
		squeeze = rangeSqueeze(f, p, bbwPct, atr, last)
	default:
		squeeze = lastBBWPct <= p.BBWidthPctileMax || lastATRPct <= p.ATRPctileMax
	}

	bullish := patterns.BullishAt(f, last)

	strictOK := squeeze && (bo20 || bo50) && bullish
	var ok bool
	switch p.Mode {
	case ModeLoose:
		loose := lastBBWPct <= p.LoosePctileBBW || lastATRPct <= p.LoosePctileATR
		ok = bo20 || bo50 || loose || strictOK
	default:
		ok = strictOK
	}
	if p.ForceDisable {
		ok = false
	}

	return Result{
		OK:            true,
		Rows:          rows,
		IsSqueeze:     squeeze,
		BBWidth:       lastDefined(bbw),
		BBWidthPctile: lastBBWPct,
		ATR:           lastDefined(atr),
		ATRPctile:     lastATRPct,
		BreakoutHH20:  bo20,
		BreakoutHH50:  bo50,
		Bullish:       bullish,
		CandidateOK:   ok,
		HasVolume:     f.HasVolume(),
	}
}

// breakoutAt reports whether the close at bar i strictly exceeds the
// highest high of the previous n bars. The current bar is excluded from
// its own comparison window; an unfilled window fails closed.
func breakoutAt(f *frame.Frame, n, i int) bool {
	hh := series.Shift(series.RollingMax(f.High, n, n), 1)
	return f.Close[i] > hh[i]
}

// rangeSqueeze is the alternate compression predicate: tight N-bar range
// AND low band width, OR low band width AND short/long ATR compression.
func rangeSqueeze(f *frame.Frame, p Params, bbwPct, atrShort []float64, i int) bool {
	hi := series.RollingMax(f.High, p.LookbackShort, p.LookbackShort)
	lo := series.RollingMin(f.Low, p.LookbackShort, p.LookbackShort)
	tightRange := false
	if f.Close[i] != 0 {
		tightRange = (hi[i]-lo[i])/f.Close[i] <= p.TightRangePct
	}

	lowBBW := bbwPct[i] <= p.BBWidthPctileMax

	atrLong := indicators.ATR(f, p.ATRLongPeriod)
	atrCompress := false
	if atrLong[i] != 0 {
		atrCompress = atrShort[i]/atrLong[i] <= p.ATRRatioMax
	}

	return (tightRange && lowBBW) || (lowBBW && atrCompress)
}

// lastDefined returns the most recent non-NaN value, or NaN if the
// series never produced one.
func lastDefined(vals []float64) float64 {
	for i := len(vals) - 1; i >= 0; i-- {
		if !math.IsNaN(vals[i]) {
			return vals[i]
		}
	}
	return math.NaN()
}
