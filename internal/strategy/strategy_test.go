package strategy

import (
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

// breakoutFrame ends a long consolidation with a bullish engulfing
// breakout bar.
func breakoutFrame(n int) *frame.Frame {
	f := mkFrame(n)
	i := n - 2
	f.Open[i], f.High[i], f.Low[i], f.Close[i] = 101, 101.5, 99.5, 100
	j := n - 1
	f.Open[j], f.High[j], f.Low[j], f.Close[j] = 99, 116, 98.5, 115
	return f
}

// TestDefaultConfig tests the stock overlay values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BreakoutATRBuf != 0.30 || cfg.TrailATRMult != 1.40 || cfg.ATRPctMax != 0.10 {
		t.Errorf("Should carry the stock overlay values, got %+v", cfg)
	}
}

// TestConfigDefaultsFill tests zero-value fallback
func TestConfigDefaultsFill(t *testing.T) {
	s := New(Config{BreakoutATRBuf: 0.5})
	cfg := s.Config()
	if cfg.BreakoutATRBuf != 0.5 {
		t.Error("Should keep explicit values")
	}
	if cfg.TrailATRMult != 1.40 || cfg.ATRPctMax != 0.10 {
		t.Error("Should fill unset values with defaults")
	}
}

// TestComputeAlignment tests that every feature series matches the frame
func TestComputeAlignment(t *testing.T) {
	f := mkFrame(120)
	ft := New(DefaultConfig()).Compute(f)

	for name, s := range map[string][]float64{
		"ATR14":     ft.ATR14,
		"ATRPctile": ft.ATRPctile,
		"ADX14":     ft.ADX14,
		"RSI7":      ft.RSI7,
		"RSI14":     ft.RSI14,
		"RSI21":     ft.RSI21,
		"SMA20":     ft.SMA20,
		"PriorHigh": ft.PriorHigh,
	} {
		if len(s) != f.Len() {
			t.Errorf("Should align %s with the frame, got %d", name, len(s))
		}
	}
	if len(ft.Bullish) != f.Len() || len(ft.PatternScore) != f.Len() {
		t.Error("Should align pattern series with the frame")
	}
}

// TestIsEntry tests the breakout entry conditions
func TestIsEntry(t *testing.T) {
	f := breakoutFrame(120)
	s := New(Config{ATRPctMax: 1.0}) // open the ATR percentile bound
	ft := s.Compute(f)
	last := f.Len() - 1

	if !ft.Bullish[last] {
		t.Fatal("Should flag the engulfing breakout bar as bullish")
	}
	if !s.IsEntry(f, ft, last) {
		t.Error("Should enter on a confirmed consolidation breakout")
	}

	// Quiet bar in the middle of the consolidation: no entry.
	if s.IsEntry(f, ft, 100) {
		t.Error("Should not enter without a breakout")
	}
	if s.IsEntry(f, ft, -1) || s.IsEntry(f, ft, f.Len()) {
		t.Error("Should reject out-of-range indices")
	}
}

// TestIsEntryRespectsATRBound tests the ATR percentile ceiling
func TestIsEntryRespectsATRBound(t *testing.T) {
	f := breakoutFrame(120)
	s := New(DefaultConfig()) // ATRPctMax 0.10
	ft := s.Compute(f)

	// The breakout bar spikes the ATR to its own maximum, so its
	// percentile sits at 1.0, far above the ceiling.
	if s.IsEntry(f, ft, f.Len()-1) {
		t.Error("Should refuse entries when volatility is already elevated")
	}
}

// TestIsExit tests the bearish-reversal exit
func TestIsExit(t *testing.T) {
	f := mkFrame(40)
	for i := 20; i < 40; i++ {
		c := 120 - float64(i)
		f.Open[i], f.High[i], f.Low[i], f.Close[i] = c, c+1, c-1, c
	}
	s := New(DefaultConfig())
	ft := s.Compute(f)

	if !s.IsExit(ft, 39) {
		t.Error("Should exit on a steady decline")
	}
	if s.IsExit(ft, 5) {
		t.Error("Should not exit during the flat stretch")
	}
}

// TestScore tests the [0,1] ranking
func TestScore(t *testing.T) {
	f := breakoutFrame(120)
	s := New(DefaultConfig())
	ft := s.Compute(f)
	last := f.Len() - 1

	score := s.Score(f, ft, last)
	if score < 0 || score > 1 {
		t.Errorf("Should stay in [0,1], got %v", score)
	}
	// Breakout strength saturates well above zero here.
	if score == 0 {
		t.Error("Should score a breakout bar above zero")
	}
	if s.Score(f, ft, -1) != 0 {
		t.Error("Should score out-of-range indices as 0")
	}
}

// TestTrailStop tests the ATR-multiple trailing stop level
func TestTrailStop(t *testing.T) {
	f := mkFrame(40)
	s := New(DefaultConfig())
	ft := s.Compute(f)
	last := f.Len() - 1

	stop := s.TrailStop(f, ft, last)
	want := f.Close[last] - 1.40*ft.ATR14[last]
	if stop != want {
		t.Errorf("Should be close minus 1.4 ATR, got %v want %v", stop, want)
	}
}
