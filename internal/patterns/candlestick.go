// Package patterns detects candlestick and chart patterns on a bar series.
// All detectors are causal: the flag at bar i reads bars i-2..i only.
package patterns

import (
	"math"

	"squeeze-screener/internal/frame"
)

// engulfingAt checks a bullish engulfing at bar i: previous bar bearish,
// current bar bullish, current body fully containing the previous body.
func engulfingAt(f *frame.Frame, i int) bool {
	if i < 1 {
		return false
	}
	po, pc := f.Open[i-1], f.Close[i-1]
	o, c := f.Open[i], f.Close[i]
	return c > o &&
		pc < po &&
		c >= math.Max(po, pc) &&
		o <= math.Min(po, pc)
}

// hammerAt checks a hammer at bar i: lower shadow at least twice the body
// on a bullish bar.
func hammerAt(f *frame.Frame, i int) bool {
	o, c, l := f.Open[i], f.Close[i], f.Low[i]
	body := math.Abs(c - o)
	lowerShadow := math.Min(o, c) - l
	return lowerShadow >= 2*body && c > o
}

// marubozuAt checks a marubozu at bar i: open within 10% of the range from
// the low, close within 10% of the range from the high, bullish bar.
func marubozuAt(f *frame.Frame, i int) bool {
	o, h, l, c := f.Open[i], f.High[i], f.Low[i], f.Close[i]
	rng := h - l
	if rng == 0 {
		rng = 1
	}
	return math.Abs(o-l) <= 0.1*rng &&
		math.Abs(c-h) <= 0.1*rng &&
		c > o
}

// morningStarAt checks a simplified three-bar morning star at bar i: a
// bearish bar, an indecision bar with at most half its body, then a bullish
// bar closing at or above the first bar's open.
func morningStarAt(f *frame.Frame, i int) bool {
	if i < 2 {
		return false
	}
	o2, c2 := f.Open[i-2], f.Close[i-2]
	o1, c1 := f.Open[i-1], f.Close[i-1]
	o, c := f.Open[i], f.Close[i]
	prevBody := math.Abs(c2 - o2)
	indecisionBody := math.Abs(c1 - o1)
	return c2 < o2 &&
		indecisionBody <= 0.5*prevBody &&
		c > o &&
		c >= o2
}

// BullishAt reports whether any bullish candlestick pattern fires at bar i.
// Bar 0 is always false; NaN inputs never fire (comparisons fail closed).
func BullishAt(f *frame.Frame, i int) bool {
	if i < 1 {
		return false
	}
	return engulfingAt(f, i) || hammerAt(f, i) || marubozuAt(f, i) || morningStarAt(f, i)
}

// Bullish returns the per-bar bullish-pattern flags for the whole series.
func Bullish(f *frame.Frame) []bool {
	out := make([]bool, f.Len())
	for i := range out {
		out[i] = BullishAt(f, i)
	}
	return out
}

// Engulfing returns the per-bar bullish engulfing flags.
func Engulfing(f *frame.Frame) []bool {
	out := make([]bool, f.Len())
	for i := range out {
		out[i] = engulfingAt(f, i)
	}
	return out
}

// Hammer returns the per-bar hammer flags.
func Hammer(f *frame.Frame) []bool {
	out := make([]bool, f.Len())
	for i := range out {
		out[i] = hammerAt(f, i)
	}
	return out
}

// Marubozu returns the per-bar marubozu flags.
func Marubozu(f *frame.Frame) []bool {
	out := make([]bool, f.Len())
	for i := range out {
		out[i] = marubozuAt(f, i)
	}
	return out
}

// MorningStar returns the per-bar morning star flags.
func MorningStar(f *frame.Frame) []bool {
	out := make([]bool, f.Len())
	for i := range out {
		out[i] = morningStarAt(f, i)
	}
	return out
}
