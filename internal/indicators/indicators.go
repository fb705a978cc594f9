// Package indicators implements the rolling-window technical indicators used
// by the squeeze/breakout gate. Every function is pure and returns a series
// aligned 1:1 with its input; NaN marks warm-up bars and undefined values.
package indicators

import (
	"math"

	"squeeze-screener/internal/frame"
	"squeeze-screener/internal/series"
)

// SMA is the simple moving average over a trailing window of n bars. Partial
// windows down to max(1, n/2) samples are allowed, so early bars produce
// approximate rather than undefined values.
func SMA(vals []float64, n int) []float64 {
	minp := n / 2
	if minp < 1 {
		minp = 1
	}
	return series.RollingMean(vals, n, minp)
}

// RSI is the Relative Strength Index over a strict trailing window of n
// bar-to-bar deltas. All-loss windows yield 0, all-gain windows 100, and a
// window with neither gains nor losses yields NaN.
func RSI(vals []float64, n int) []float64 {
	delta := series.Diff(vals)
	up := series.Filled(len(vals))
	down := series.Filled(len(vals))
	for i, d := range delta {
		if !series.Defined(d) {
			continue
		}
		if d > 0 {
			up[i], down[i] = d, 0
		} else {
			up[i], down[i] = 0, -d
		}
	}
	gain := series.RollingMean(up, n, n)
	loss := series.RollingMean(down, n, n)

	out := series.Filled(len(vals))
	for i := range vals {
		g, l := gain[i], loss[i]
		if !series.Defined(g) || !series.Defined(l) {
			continue
		}
		if l == 0 {
			if g == 0 {
				continue // 0/0: undefined average ratio
			}
			out[i] = 100
			continue
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|) per bar. The
// first bar has no previous close and falls back to high-low.
func TrueRange(f *frame.Frame) []float64 {
	out := series.Filled(f.Len())
	for i := 0; i < f.Len(); i++ {
		h, l := f.High[i], f.Low[i]
		if !series.Defined(h) || !series.Defined(l) {
			continue
		}
		tr := h - l
		if i > 0 && series.Defined(f.Close[i-1]) {
			pc := f.Close[i-1]
			tr = math.Max(tr, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		}
		out[i] = tr
	}
	return out
}

// ATR is the simple (non-exponential) trailing mean of the true range over n
// bars, with strict warm-up.
func ATR(f *frame.Frame, n int) []float64 {
	return series.RollingMean(TrueRange(f), n, n)
}

// ADX is a simplified Welles Wilder Average Directional Index: smoothed
// directional indicators from rolling directional-movement sums over ATR,
// then a rolling mean of the DX. A zero +DI/-DI denominator propagates NaN.
func ADX(f *frame.Frame, n int) []float64 {
	upMove := series.Diff(f.High)
	downMove := series.Diff(f.Low)

	plusDM := make([]float64, f.Len())
	minusDM := make([]float64, f.Len())
	for i := range plusDM {
		up, dn := upMove[i], -downMove[i]
		if series.Defined(up) && series.Defined(dn) {
			if up > dn && up > 0 {
				plusDM[i] = up
			}
			if dn > up && dn > 0 {
				minusDM[i] = dn
			}
		}
	}

	atr := ATR(f, n)
	plusSum := series.RollingSum(plusDM, n, n)
	minusSum := series.RollingSum(minusDM, n, n)

	dx := series.Filled(f.Len())
	for i := range dx {
		if !series.Defined(atr[i]) || atr[i] == 0 {
			continue
		}
		if !series.Defined(plusSum[i]) || !series.Defined(minusSum[i]) {
			continue
		}
		plusDI := 100 * plusSum[i] / atr[i]
		minusDI := 100 * minusSum[i] / atr[i]
		if plusDI+minusDI == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	return series.RollingMean(dx, n, n)
}

// BBWidth is the Bollinger band width as a fraction of the moving average:
// (upper - lower) / mean, with population standard deviation and strict
// warm-up. A zero mean yields NaN, never infinity.
func BBWidth(vals []float64, n int, k float64) []float64 {
	mean := series.RollingMean(vals, n, n)
	std := series.RollingStd(vals, n, n)
	out := series.Filled(len(vals))
	for i := range vals {
		m, s := mean[i], std[i]
		if !series.Defined(m) || !series.Defined(s) || m == 0 {
			continue
		}
		upper := m + k*s
		lower := m - k*s
		out[i] = (upper - lower) / m
	}
	return out
}

// ZScore is (value - rolling mean) / rolling population stdev with strict
// warm-up. A zero stdev yields NaN.
func ZScore(vals []float64, n int) []float64 {
	mean := series.RollingMean(vals, n, n)
	std := series.RollingStd(vals, n, n)
	out := series.Filled(len(vals))
	for i := range vals {
		if !series.Defined(vals[i]) || !series.Defined(mean[i]) || !series.Defined(std[i]) || std[i] == 0 {
			continue
		}
		out[i] = (vals[i] - mean[i]) / std[i]
	}
	return out
}

// HHV is the highest value over a trailing window of n bars, defined as soon
// as a single bar exists.
func HHV(vals []float64, n int) []float64 {
	return series.RollingMax(vals, n, 1)
}

// PercentileRank ranks each value within its trailing window as a fraction
// in [0,1]; see series.PercentileRank.
func PercentileRank(vals []float64, window, minSamples int) []float64 {
	return series.PercentileRank(vals, window, minSamples)
}
