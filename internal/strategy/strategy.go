// Package strategy combines indicator features, gate diagnostics and
// pattern flags into entry/exit decisions and a ranking score.
package strategy

import (
	"math"

	"squeeze-screener/internal/frame"
	"squeeze-screener/internal/indicators"
	"squeeze-screener/internal/patterns"
	"squeeze-screener/internal/series"
)

// Config is the strategy tuning namespace, loadable from the
// "strategycfg" section of a YAML overlay.
type Config struct {
	// BreakoutATRBuf is the ATR multiple added beyond the prior high
	// before a breakout entry counts.
	BreakoutATRBuf float64 `yaml:"breakout_atr_buf" json:"breakout_atr_buf"`
	// TrailATRMult sizes the trailing stop for downstream consumers;
	// the aggregator itself only carries it.
	TrailATRMult float64 `yaml:"trail_atr_mult" json:"trail_atr_mult"`
	// ATRPctMax is the maximum acceptable ATR percentile for an entry.
	ATRPctMax float64 `yaml:"atr_pct_max" json:"atr_pct_max"`
}

// DefaultConfig returns the stock overlay values.
func DefaultConfig() Config {
	return Config{
		BreakoutATRBuf: 0.30,
		TrailATRMult:   1.40,
		ATRPctMax:      0.10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BreakoutATRBuf <= 0 {
		c.BreakoutATRBuf = d.BreakoutATRBuf
	}
	if c.TrailATRMult <= 0 {
		c.TrailATRMult = d.TrailATRMult
	}
	if c.ATRPctMax <= 0 {
		c.ATRPctMax = d.ATRPctMax
	}
	return c
}

// Features holds the per-bar series the aggregator decides on. All
// slices are aligned with the source frame.
type Features struct {
	ATR14     []float64
	ATRPctile []float64
	ADX14     []float64
	RSI7      []float64
	RSI14     []float64
	RSI21     []float64
	SMA20     []float64
	PriorHigh []float64 // highest high of the previous 20 bars

	Bullish      []bool
	Consolidated []bool
	PatternScore []float64
	Reversal     []bool
}

// Breakout evaluates the squeeze-then-breakout swing entry.
type Breakout struct {
	cfg   Config
	chart patterns.ChartConfig
}

// New builds a Breakout aggregator from an overlay config.
func New(cfg Config) *Breakout {
	return &Breakout{cfg: cfg.withDefaults(), chart: patterns.DefaultChartConfig()}
}

// Config returns the effective overlay values.
func (s *Breakout) Config() Config { return s.cfg }

// Compute derives the full feature set for a frame.
func (s *Breakout) Compute(f *frame.Frame) *Features {
	atr14 := indicators.ATR(f, 14)
	return &Features{
		ATR14:        atr14,
		ATRPctile:    series.PercentileRank(atr14, 252, 42),
		ADX14:        indicators.ADX(f, 14),
		RSI7:         indicators.RSI(f.Close, 7),
		RSI14:        indicators.RSI(f.Close, 14),
		RSI21:        indicators.RSI(f.Close, 21),
		SMA20:        indicators.SMA(f.Close, 20),
		PriorHigh:    series.Shift(series.RollingMax(f.High, 20, 20), 1),
		Bullish:      patterns.Bullish(f),
		Consolidated: patterns.ConsolidationConfirm(f, s.chart),
		PatternScore: patterns.Score(f, s.chart),
		Reversal:     patterns.BearishReversal(f),
	}
}

// IsEntry reports a breakout entry at bar i: close above the prior-20
// high plus an ATR buffer, ATR percentile within bounds, a bullish
// candle on the bar, and a confirmed consolidation behind it. NaN
// features fail closed.
func (s *Breakout) IsEntry(f *frame.Frame, ft *Features, i int) bool {
	if i < 0 || i >= f.Len() {
		return false
	}
	level := ft.PriorHigh[i] + s.cfg.BreakoutATRBuf*ft.ATR14[i]
	return f.Close[i] > level &&
		ft.ATRPctile[i] <= s.cfg.ATRPctMax &&
		ft.Bullish[i] &&
		setupConsolidated(ft, i)
}

// setupConsolidated checks for a confirmed consolidation on the bar or
// within the few bars leading into it.
func setupConsolidated(ft *Features, i int) bool {
	for j := i; j >= 0 && j >= i-5; j-- {
		if ft.Consolidated[j] {
			return true
		}
	}
	return false
}

// IsExit reports the early-exit condition at bar i.
func (s *Breakout) IsExit(ft *Features, i int) bool {
	if i < 0 || i >= len(ft.Reversal) {
		return false
	}
	return ft.Reversal[i]
}

// Score ranks bar i in [0,1]: 0.6 weight on the consolidation pattern
// score and 0.4 on breakout strength measured in ATR units above the
// prior high (saturating at 2 ATR). Undefined inputs contribute 0.
func (s *Breakout) Score(f *frame.Frame, ft *Features, i int) float64 {
	if i < 0 || i >= f.Len() {
		return 0
	}
	pattern := ft.PatternScore[i]
	if math.IsNaN(pattern) {
		pattern = 0
	}
	var strength float64
	if excess := f.Close[i] - ft.PriorHigh[i]; excess > 0 && ft.ATR14[i] > 0 {
		strength = series.Clamp01(excess / (2 * ft.ATR14[i]))
	}
	return series.Clamp01(0.6*pattern + 0.4*strength)
}

// TrailStop returns the trailing stop level for bar i, close minus the
// configured ATR multiple. NaN when ATR is still warming up.
func (s *Breakout) TrailStop(f *frame.Frame, ft *Features, i int) float64 {
	return f.Close[i] - s.cfg.TrailATRMult*ft.ATR14[i]
}
