// Package series provides NaN-aware rolling-window primitives over aligned
// float slices. NaN marks an undefined value; every rolling operator takes a
// minimum count of defined samples and yields NaN below it.
package series

import (
	"math"
	"sort"
)

// Defined reports whether v carries a usable value.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// Filled returns a slice of n NaN values.
func Filled(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Shift moves values forward by k positions; the first k slots become NaN.
func Shift(vals []float64, k int) []float64 {
	out := Filled(len(vals))
	for i := k; i < len(vals); i++ {
		out[i] = vals[i-k]
	}
	return out
}

// Diff returns bar-to-bar differences; index 0 is NaN.
func Diff(vals []float64) []float64 {
	out := Filled(len(vals))
	for i := 1; i < len(vals); i++ {
		if Defined(vals[i]) && Defined(vals[i-1]) {
			out[i] = vals[i] - vals[i-1]
		}
	}
	return out
}

// window collects the defined values in vals[i-n+1 .. i] into buf.
func window(vals []float64, i, n int, buf []float64) []float64 {
	buf = buf[:0]
	start := i - n + 1
	if start < 0 {
		start = 0
	}
	for j := start; j <= i; j++ {
		if Defined(vals[j]) {
			buf = append(buf, vals[j])
		}
	}
	return buf
}

// RollingMean computes the trailing mean over a window of n bars, requiring
// at least minPeriods defined samples.
func RollingMean(vals []float64, n, minPeriods int) []float64 {
	out := Filled(len(vals))
	buf := make([]float64, 0, n)
	for i := range vals {
		buf = window(vals, i, n, buf)
		if len(buf) < minPeriods {
			continue
		}
		sum := 0.0
		for _, v := range buf {
			sum += v
		}
		out[i] = sum / float64(len(buf))
	}
	return out
}

// RollingStd computes the trailing population standard deviation (divide by
// the sample count, not count-1) over a window of n bars.
func RollingStd(vals []float64, n, minPeriods int) []float64 {
	out := Filled(len(vals))
	buf := make([]float64, 0, n)
	for i := range vals {
		buf = window(vals, i, n, buf)
		if len(buf) < minPeriods {
			continue
		}
		mean := 0.0
		for _, v := range buf {
			mean += v
		}
		mean /= float64(len(buf))
		variance := 0.0
		for _, v := range buf {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(len(buf)))
	}
	return out
}

// RollingSum computes the trailing sum over a window of n bars.
func RollingSum(vals []float64, n, minPeriods int) []float64 {
	out := Filled(len(vals))
	buf := make([]float64, 0, n)
	for i := range vals {
		buf = window(vals, i, n, buf)
		if len(buf) < minPeriods {
			continue
		}
		sum := 0.0
		for _, v := range buf {
			sum += v
		}
		out[i] = sum
	}
	return out
}

// RollingMax computes the trailing maximum over a window of n bars.
func RollingMax(vals []float64, n, minPeriods int) []float64 {
	out := Filled(len(vals))
	buf := make([]float64, 0, n)
	for i := range vals {
		buf = window(vals, i, n, buf)
		if len(buf) < minPeriods {
			continue
		}
		maxv := buf[0]
		for _, v := range buf[1:] {
			if v > maxv {
				maxv = v
			}
		}
		out[i] = maxv
	}
	return out
}

// RollingMin computes the trailing minimum over a window of n bars.
func RollingMin(vals []float64, n, minPeriods int) []float64 {
	out := Filled(len(vals))
	buf := make([]float64, 0, n)
	for i := range vals {
		buf = window(vals, i, n, buf)
		if len(buf) < minPeriods {
			continue
		}
		minv := buf[0]
		for _, v := range buf[1:] {
			if v < minv {
				minv = v
			}
		}
		out[i] = minv
	}
	return out
}

// RollingMedian computes the trailing median over a window of n bars.
func RollingMedian(vals []float64, n, minPeriods int) []float64 {
	return RollingQuantile(vals, n, minPeriods, 0.5)
}

// RollingQuantile computes the trailing q-quantile (0..1, linear
// interpolation) over a window of n bars.
func RollingQuantile(vals []float64, n, minPeriods int, q float64) []float64 {
	out := Filled(len(vals))
	buf := make([]float64, 0, n)
	for i := range vals {
		buf = window(vals, i, n, buf)
		if len(buf) < minPeriods {
			continue
		}
		out[i] = quantile(buf, q)
	}
	return out
}

// quantile mutates vals (sorts in place).
func quantile(vals []float64, q float64) float64 {
	sort.Float64s(vals)
	if len(vals) == 1 {
		return vals[0]
	}
	pos := q * float64(len(vals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return vals[lo]
	}
	frac := pos - float64(lo)
	return vals[lo]*(1-frac) + vals[hi]*frac
}

// PercentileRank returns, per bar, the fraction of defined values in the
// trailing window (current bar included) that are less than or equal to the
// current value. NaN when the current value is undefined or fewer than
// minSamples defined values are available.
func PercentileRank(vals []float64, n, minSamples int) []float64 {
	out := Filled(len(vals))
	buf := make([]float64, 0, n)
	for i := range vals {
		if !Defined(vals[i]) {
			continue
		}
		buf = window(vals, i, n, buf)
		if len(buf) < minSamples {
			continue
		}
		count := 0
		for _, v := range buf {
			if v <= vals[i] {
				count++
			}
		}
		out[i] = float64(count) / float64(len(buf))
	}
	return out
}

// Clamp01 bounds v to [0,1]; NaN passes through.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
