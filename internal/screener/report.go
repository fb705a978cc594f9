package screener

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// ReportPath derives the report file name from the passed-symbols path
// by swapping its extension for ".report.csv".
func ReportPath(outPath string) string {
	ext := ".csv"
	if i := strings.LastIndex(outPath, "."); i > 0 {
		ext = outPath[i:]
	}
	return strings.TrimSuffix(outPath, ext) + ".report.csv"
}

// WriteOutputs writes the passed-symbols CSV to outPath and the full
// per-symbol report alongside it.
func WriteOutputs(res *RunResult, outPath string) error {
	if err := writePassed(res, outPath); err != nil {
		return err
	}
	return writeReport(res, ReportPath(outPath))
}

func writePassed(res *RunResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"symbol"}); err != nil {
		return err
	}
	for _, sym := range res.Passed {
		if err := w.Write([]string{sym}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeReport(res *RunResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"symbol", "mode", "status", "ok", "score",
		"is_squeeze", "bullish", "bb_width_pctile", "atr_pctile",
		"breakout_hh20", "breakout_hh50", "reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range res.Rows {
		rec := []string{
			row.Symbol,
			string(res.Mode),
			row.Status,
			strconv.FormatBool(row.OK),
			formatFloat(row.Score),
			strconv.FormatBool(row.Result.IsSqueeze),
			strconv.FormatBool(row.Result.Bullish),
			formatFloat(row.Result.BBWidthPctile),
			formatFloat(row.Result.ATRPctile),
			strconv.FormatBool(row.Result.BreakoutHH20),
			strconv.FormatBool(row.Result.BreakoutHH50),
			row.Reason,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// formatFloat renders a metric for CSV, leaving undefined values empty.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
