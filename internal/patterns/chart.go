package patterns

import (
	"math"

	"squeeze-screener/internal/frame"
	"squeeze-screener/internal/indicators"
	"squeeze-screener/internal/series"
)

// ChartConfig tunes the consolidation detector and scorer.
type ChartConfig struct {
	BandPeriod    int // Bollinger band window
	BandPctile    int // low-percentile threshold for band width, percent
	ATRWindow     int // rolling median window for ATR compression
	SqueezeWindow int // moving average window for the close-to-MA squeeze
}

// DefaultChartConfig returns the stock detector settings.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		BandPeriod:    20,
		BandPctile:    5,
		ATRWindow:     20,
		SqueezeWindow: 20,
	}
}

// referenceWindow is the lookback for ranking band width against its own
// history. Percentile thresholds and min/max ranks both use it.
const referenceWindow = 100

func (c ChartConfig) withDefaults() ChartConfig {
	d := DefaultChartConfig()
	if c.BandPeriod <= 0 {
		c.BandPeriod = d.BandPeriod
	}
	if c.BandPctile <= 0 {
		c.BandPctile = d.BandPctile
	}
	if c.ATRWindow <= 0 {
		c.ATRWindow = d.ATRWindow
	}
	if c.SqueezeWindow <= 0 {
		c.SqueezeWindow = d.SqueezeWindow
	}
	return c
}

// closeToMABand is |close - MA| normalized by the day's range. A zero range
// yields NaN so downstream comparisons fail closed.
func closeToMABand(f *frame.Frame, maWindow int) []float64 {
	ma := indicators.SMA(f.Close, maWindow)
	out := make([]float64, f.Len())
	for i := range out {
		rng := f.High[i] - f.Low[i]
		if rng == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Abs(f.Close[i]-ma[i]) / rng
	}
	return out
}

// ConsolidationConfirm flags bars inside a tight consolidation: band width
// in its lowest percentile over the reference window, ATR below its rolling
// median, and close squeezed within 20% of the day's range around its MA.
// All three must hold; undefined inputs produce false.
func ConsolidationConfirm(f *frame.Frame, cfg ChartConfig) []bool {
	cfg = cfg.withDefaults()
	width := indicators.BBWidth(f.Close, cfg.BandPeriod, 2.0)
	q := series.RollingQuantile(width, referenceWindow, referenceWindow/2, float64(cfg.BandPctile)/100.0)

	atr := indicators.ATR(f, 14)
	atrMed := series.RollingMedian(atr, cfg.ATRWindow, max(5, cfg.ATRWindow/2))

	band := closeToMABand(f, cfg.SqueezeWindow)

	out := make([]bool, f.Len())
	for i := range out {
		out[i] = width[i] <= q[i] &&
			atr[i] <= atrMed[i] &&
			band[i] <= 0.20
	}
	return out
}

// Score computes a continuous [0,1] consolidation tightness score per bar:
// 0.5 weight on the band width's inverted min/max rank over the reference
// window, 0.3 on ATR being below its rolling median, 0.2 on the close-to-MA
// squeeze. Undefined components contribute 0.
func Score(f *frame.Frame, cfg ChartConfig) []float64 {
	cfg = cfg.withDefaults()
	width := indicators.BBWidth(f.Close, cfg.BandPeriod, 2.0)
	rollMin := series.RollingMin(width, referenceWindow, referenceWindow/2)
	rollMax := series.RollingMax(width, referenceWindow, referenceWindow/2)

	atr := indicators.ATR(f, 14)
	atrMed := series.RollingMedian(atr, cfg.ATRWindow, max(5, cfg.ATRWindow/2))

	band := closeToMABand(f, cfg.SqueezeWindow)

	out := make([]float64, f.Len())
	for i := range out {
		var tight float64
		if rank := (width[i] - rollMin[i]) / (rollMax[i] - rollMin[i]); !math.IsNaN(rank) {
			tight = 1 - series.Clamp01(rank)
		}
		var compression float64
		if atr[i] <= atrMed[i] {
			compression = 1
		}
		var squeeze float64
		if !math.IsNaN(band[i]) {
			squeeze = series.Clamp01(1 - band[i]/0.20)
		}
		out[i] = series.Clamp01(0.5*tight + 0.3*compression + 0.2*squeeze)
	}
	return out
}

// BearishReversal flags a crude double-top structure for early exits: the
// 20-bar rolling high has not exceeded its value from 5 bars earlier by
// more than 2%, and the close sits below its value from 3 bars earlier.
func BearishReversal(f *frame.Frame) []bool {
	hh := series.RollingMax(f.Close, 20, 5)
	prev := series.Shift(hh, 5)
	back3 := series.Shift(f.Close, 3)

	out := make([]bool, f.Len())
	for i := range out {
		out[i] = hh[i] <= prev[i]*1.02 && f.Close[i] < back3[i]
	}
	return out
}
