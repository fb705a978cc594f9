package gate

import (
	"math"
	"testing"
	"time"

	"squeeze-screener/internal/frame"
)

func mkFrame(n int) *frame.Frame {
	f := &frame.Frame{
		Dates: make([]time.Time, n),
		Open:  make([]float64, n),
		High:  make([]float64, n),
		Low:   make([]float64, n),
		Close: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		f.Dates[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		c := 100 + 0.5*float64(i%2)
		f.Open[i] = c
		f.High[i] = c + 1
		f.Low[i] = c - 1
		f.Close[i] = c
	}
	return f
}

// breakoutFrame ends with a bearish setup bar followed by a bullish
// engulfing bar that clears every prior high.
func breakoutFrame(n int) *frame.Frame {
	f := mkFrame(n)
	i := n - 2
	f.Open[i], f.High[i], f.Low[i], f.Close[i] = 101, 101.5, 99.5, 100
	j := n - 1
	f.Open[j], f.High[j], f.Low[j], f.Close[j] = 99, 116, 98.5, 115
	return f
}

// relaxedParams opens the squeeze thresholds fully so decision logic can
// be tested with a short percentile window.
func relaxedParams() Params {
	p := DefaultParams()
	p.PctileWindow = 60
	p.BBWidthPctileMax = 1.0
	p.ATRPctileMax = 1.0
	return p
}

func tableFrom(f *frame.Frame) *frame.Table {
	return &frame.Table{
		Dates: f.Dates,
		Columns: []frame.Column{
			{Label: []string{"Open"}, Values: f.Open},
			{Label: []string{"High"}, Values: f.High},
			{Label: []string{"Low"}, Values: f.Low},
			{Label: []string{"Close"}, Values: f.Close},
		},
	}
}

// TestInsufficientRows tests the short-history soft failure
func TestInsufficientRows(t *testing.T) {
	f := mkFrame(30)
	res, err := Evaluate(tableFrom(f), DefaultParams())
	if err != nil {
		t.Fatalf("Should not error on short history, got: %v", err)
	}
	if res.OK {
		t.Error("Should not be ok below max(band, atr)+2 rows")
	}
	if res.Reason != "insufficient_rows" {
		t.Errorf("Should report insufficient_rows, got %q", res.Reason)
	}
	if res.Rows != 30 {
		t.Errorf("Should report the row count, got %d", res.Rows)
	}
}

// TestMissingColumnIsHardFailure tests that resolution failures error out
func TestMissingColumnIsHardFailure(t *testing.T) {
	f := mkFrame(60)
	tb := tableFrom(f)
	tb.Columns = tb.Columns[:2] // drop low and close
	if _, err := Evaluate(tb, DefaultParams()); err == nil {
		t.Error("Should fail hard when a required column cannot be resolved")
	}
}

// TestBreakoutExcludesCurrentBar tests the one-bar shift on the rolling high
func TestBreakoutExcludesCurrentBar(t *testing.T) {
	f := mkFrame(60)
	// Big intraday high but a close back inside the range: no breakout.
	i := 59
	f.High[i] = 130
	f.Close[i] = 100.5

	res := EvaluateFrame(f, relaxedParams())
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	if res.BreakoutHH20 {
		t.Error("Should not flag breakout when only the current bar's high spiked")
	}

	// A close above every prior high is a breakout.
	f2 := breakoutFrame(60)
	res2 := EvaluateFrame(f2, relaxedParams())
	if !res2.BreakoutHH20 || !res2.BreakoutHH50 {
		t.Error("Should flag breakout when the close clears all prior highs")
	}
}

// TestStrictModeRequiresAllThree tests squeeze AND breakout AND bullish
func TestStrictModeRequiresAllThree(t *testing.T) {
	p := relaxedParams()

	passing := breakoutFrame(120)
	res := EvaluateFrame(passing, p)
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	if !res.IsSqueeze || !res.BreakoutHH20 || !res.Bullish {
		t.Fatalf("Should satisfy all three components: squeeze=%v breakout=%v bullish=%v",
			res.IsSqueeze, res.BreakoutHH20, res.Bullish)
	}
	if !res.CandidateOK {
		t.Error("Should pass the strict gate with all components true")
	}

	// Same breakout with a bearish final candle: no candidate.
	bearish := breakoutFrame(120)
	bearish.Open[119], bearish.Close[119] = 116, 115
	bearish.High[119] = 116.5
	res2 := EvaluateFrame(bearish, p)
	if res2.Bullish {
		t.Fatal("Should not flag a bearish candle as bullish")
	}
	if res2.CandidateOK {
		t.Error("Should fail the strict gate without a bullish candle")
	}
}

// TestFailClosedOnUndefinedPercentiles tests default params on a
// history too short to fill the percentile window
func TestFailClosedOnUndefinedPercentiles(t *testing.T) {
	f := breakoutFrame(60)
	res := EvaluateFrame(f, DefaultParams())
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	if !math.IsNaN(res.BBWidthPctile) {
		t.Errorf("Should report an undefined band-width percentile, got %v", res.BBWidthPctile)
	}
	if res.IsSqueeze {
		t.Error("Should fail closed when percentile metrics are undefined")
	}
	if res.CandidateOK {
		t.Error("Should not pass the gate on undefined metrics")
	}
}

// TestLooseMode tests that breakout alone passes in loose mode
func TestLooseMode(t *testing.T) {
	p := DefaultParams()
	p.Mode = ModeLoose

	// Short history: percentiles undefined, squeeze false, but the
	// breakout alone carries loose mode.
	f := breakoutFrame(60)
	res := EvaluateFrame(f, p)
	if !res.CandidateOK {
		t.Error("Should pass loose mode on breakout alone")
	}

	// No breakout and undefined percentiles: loose mode still fails.
	flat := mkFrame(60)
	res2 := EvaluateFrame(flat, p)
	if res2.CandidateOK {
		t.Error("Should fail loose mode without breakout or defined squeeze")
	}
}

// TestRangeSqueezePolicy tests the alternate compression predicate
func TestRangeSqueezePolicy(t *testing.T) {
	p := relaxedParams()
	p.SqueezePolicy = SqueezeRange
	p.TightRangePct = 10 // any range qualifies

	res := EvaluateFrame(breakoutFrame(120), p)
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	if !res.IsSqueeze {
		t.Error("Should flag a squeeze under the range policy with open thresholds")
	}
}

// TestForceDisable tests that diagnostics survive a forced-off gate
func TestForceDisable(t *testing.T) {
	p := relaxedParams()
	p.ForceDisable = true

	res := EvaluateFrame(breakoutFrame(120), p)
	if res.CandidateOK {
		t.Error("Should never pass with ForceDisable set")
	}
	if !res.OK || !res.IsSqueeze || !res.BreakoutHH20 {
		t.Error("Should keep diagnostics flowing with ForceDisable set")
	}
}

// TestEvaluateIsPure tests idempotence and input immutability
func TestEvaluateIsPure(t *testing.T) {
	f := breakoutFrame(120)
	before := make([]float64, len(f.Close))
	copy(before, f.Close)

	p := relaxedParams()
	first := EvaluateFrame(f, p)
	second := EvaluateFrame(f, p)

	if first != second {
		t.Error("Should return identical results for identical inputs")
	}
	for i := range before {
		if f.Close[i] != before[i] {
			t.Fatal("Should not mutate the input series")
		}
	}
}

// TestSignalsAdapter tests the compact result shape
func TestSignalsAdapter(t *testing.T) {
	res := Result{
		CandidateOK:  true,
		IsSqueeze:    true,
		BreakoutHH50: true,
		Bullish:      true,
	}
	sig := res.Signals()
	if !sig.OK || !sig.Consolidating || !sig.Breakout || !sig.Bullish {
		t.Errorf("Should map the strict shape onto signals, got %+v", sig)
	}

	none := Result{OK: true}
	if s := none.Signals(); s.OK || s.Breakout {
		t.Error("Should map an empty result to all-false signals")
	}
}

// TestVolumeReported tests the has_volume diagnostic
func TestVolumeReported(t *testing.T) {
	f := mkFrame(60)
	res := EvaluateFrame(f, relaxedParams())
	if res.HasVolume {
		t.Error("Should report missing volume")
	}

	f.Volume = make([]float64, f.Len())
	res2 := EvaluateFrame(f, relaxedParams())
	if !res2.HasVolume {
		t.Error("Should report volume when present")
	}
}

// TestAsOfEvaluatesHistoricalBar tests backdated evaluation
func TestAsOfEvaluatesHistoricalBar(t *testing.T) {
	f := breakoutFrame(130)

	p := relaxedParams()
	p.AsOf = 100 // flat stretch well before the breakout bars
	res := EvaluateFrame(f, p)
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	if res.CandidateOK || res.BreakoutHH20 || res.BreakoutHH50 {
		t.Error("Should see no breakout before it happens")
	}
	if res.Rows != 101 {
		t.Errorf("Should report the truncated history, got %d rows", res.Rows)
	}

	p.AsOf = 129 // the breakout bar itself
	if !EvaluateFrame(f, p).CandidateOK {
		t.Error("Should match the live evaluation at the last bar")
	}
}

// TestAsOfShortHistory tests backdating into the warm-up window
func TestAsOfShortHistory(t *testing.T) {
	p := relaxedParams()
	p.AsOf = 5
	res := EvaluateFrame(mkFrame(130), p)
	if res.OK {
		t.Error("Should not be ok inside the warm-up window")
	}
	if res.Reason != "insufficient_rows" {
		t.Errorf("Should report insufficient_rows, got %q", res.Reason)
	}
}

// compressionFrame builds a volatile prefix, a low-volatility segment,
// then a modest bullish engulfing breakout over the compressed highs.
func compressionFrame() *frame.Frame {
	n := 280
	f := &frame.Frame{
		Dates: make([]time.Time, n),
		Open:  make([]float64, n),
		High:  make([]float64, n),
		Low:   make([]float64, n),
		Close: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		f.Dates[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		var c, rng float64
		switch {
		case i < 250:
			c, rng = 99+2*float64(i%2), 2
		default:
			c, rng = 100+0.25*float64(i%2), 0.3
		}
		f.Open[i] = c
		f.High[i] = c + rng
		f.Low[i] = c - rng
		f.Close[i] = c
	}
	// Bearish setup bar, then the engulfing breakout.
	f.Open[278], f.High[278], f.Low[278], f.Close[278] = 100.6, 100.8, 100, 100.2
	f.Open[279], f.High[279], f.Low[279], f.Close[279] = 100.1, 101.6, 100, 101.5
	return f
}

// TestSqueezeAtDefaultThresholds tests the percentile squeeze on a
// genuinely compressed tail, with stock thresholds
func TestSqueezeAtDefaultThresholds(t *testing.T) {
	f := compressionFrame()

	p := DefaultParams()
	p.AsOf = 277 // compressed tail, before the breakout bars
	res := EvaluateFrame(f, p)
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	if !res.IsSqueeze {
		t.Errorf("Should detect the squeeze, got bbw pctile %v, atr pctile %v",
			res.BBWidthPctile, res.ATRPctile)
	}
	if res.BBWidthPctile > DefaultParams().BBWidthPctileMax {
		t.Errorf("Should rank the compressed width low, got %v", res.BBWidthPctile)
	}
	if res.ATRPctile > DefaultParams().ATRPctileMax {
		t.Errorf("Should rank the compressed range low, got %v", res.ATRPctile)
	}
	if res.BreakoutHH20 || res.CandidateOK {
		t.Error("Should not pass before the breakout")
	}
}

// TestCandidateAtDefaultThresholds tests the full strict gate on the
// breakout bar, with stock thresholds
func TestCandidateAtDefaultThresholds(t *testing.T) {
	res := EvaluateFrame(compressionFrame(), DefaultParams())
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	if !res.IsSqueeze {
		t.Errorf("Should still be squeezed on the breakout bar, got bbw pctile %v, atr pctile %v",
			res.BBWidthPctile, res.ATRPctile)
	}
	if !res.BreakoutHH20 {
		t.Error("Should clear the 20-bar high")
	}
	if res.BreakoutHH50 {
		t.Error("Should not clear the volatile prefix highs")
	}
	if !res.Bullish {
		t.Error("Should flag the engulfing bar")
	}
	if !res.CandidateOK {
		t.Error("Should pass the strict gate")
	}
}

// TestConstantVolatilityRanksAtOne tests the tie-saturated rank case
func TestConstantVolatilityRanksAtOne(t *testing.T) {
	res := EvaluateFrame(mkFrame(280), DefaultParams())
	if !res.OK {
		t.Fatalf("Should evaluate, got reason %q", res.Reason)
	}
	// Every window is identical, so each value ties the whole window
	// and ranks at the top.
	if res.BBWidthPctile < 0.99 || res.ATRPctile < 0.99 {
		t.Errorf("Should saturate the ranks, got bbw pctile %v, atr pctile %v",
			res.BBWidthPctile, res.ATRPctile)
	}
	if res.IsSqueeze {
		t.Error("Should not call a constant-volatility series a squeeze")
	}
	if res.CandidateOK {
		t.Error("Should not pass without compression")
	}
}
