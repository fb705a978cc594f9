// Package frame holds the canonical bar-series representation and the
// column resolver that maps heterogeneous vendor tables onto it.
package frame

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column is one labelled value column of a raw bar table. Label may carry
// multiple parts when the source uses composite (field, ticker) headers.
type Column struct {
	Label  []string
	Values []float64
}

// Table is a raw date-indexed bar table as delivered by a data vendor,
// before column roles have been resolved. Non-numeric cells are NaN.
type Table struct {
	Dates   []time.Time
	Columns []Column
}

// Frame is the canonical bar series: strictly increasing dates, no
// duplicates, OHLC required, volume optional (nil when absent). A Frame is
// treated as read-only once built.
type Frame struct {
	Dates  []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of bars.
func (f *Frame) Len() int { return len(f.Close) }

// HasVolume reports whether a volume column was resolved.
func (f *Frame) HasVolume() bool { return f.Volume != nil }

// Tail returns a view of the most recent n bars (the whole frame when it is
// shorter). The underlying slices are shared, not copied.
func (f *Frame) Tail(n int) *Frame {
	if n >= f.Len() {
		return f
	}
	start := f.Len() - n
	out := &Frame{
		Dates: f.Dates[start:],
		Open:  f.Open[start:],
		High:  f.High[start:],
		Low:   f.Low[start:],
		Close: f.Close[start:],
	}
	if f.Volume != nil {
		out.Volume = f.Volume[start:]
	}
	return out
}

// Truncate returns a view of the bars up to and including index i.
func (f *Frame) Truncate(i int) *Frame {
	if i < 0 || i >= f.Len()-1 {
		return f
	}
	out := &Frame{
		Dates: f.Dates[:i+1],
		Open:  f.Open[:i+1],
		High:  f.High[:i+1],
		Low:   f.Low[:i+1],
		Close: f.Close[:i+1],
	}
	if f.Volume != nil {
		out.Volume = f.Volume[:i+1]
	}
	return out
}

// FromTable resolves the OHLCV roles of t and builds a Frame: rows sorted by
// date, duplicate dates collapsed last-write-wins. Returns a
// MissingColumnError when a required role cannot be resolved.
func FromTable(t *Table) (*Frame, error) {
	oi, err := Resolve(t, OpenCandidates)
	if err != nil {
		return nil, err
	}
	hi, err := Resolve(t, HighCandidates)
	if err != nil {
		return nil, err
	}
	li, err := Resolve(t, LowCandidates)
	if err != nil {
		return nil, err
	}
	ci, err := Resolve(t, CloseCandidates)
	if err != nil {
		return nil, err
	}
	vi, verr := Resolve(t, VolumeCandidates)
	hasVolume := verr == nil

	n := len(t.Dates)
	// Stable sort by date keeps ingest order among duplicates, so keeping
	// the last row of each run implements last-write-wins.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.Dates[idx[a]].Before(t.Dates[idx[b]])
	})

	keep := make([]int, 0, n)
	for k, row := range idx {
		if k+1 < n && t.Dates[idx[k+1]].Equal(t.Dates[row]) {
			continue
		}
		keep = append(keep, row)
	}

	f := &Frame{
		Dates: make([]time.Time, len(keep)),
		Open:  make([]float64, len(keep)),
		High:  make([]float64, len(keep)),
		Low:   make([]float64, len(keep)),
		Close: make([]float64, len(keep)),
	}
	if hasVolume {
		f.Volume = make([]float64, len(keep))
	}
	for out, row := range keep {
		f.Dates[out] = t.Dates[row]
		f.Open[out] = t.Columns[oi].Values[row]
		f.High[out] = t.Columns[hi].Values[row]
		f.Low[out] = t.Columns[li].Values[row]
		f.Close[out] = t.Columns[ci].Values[row]
		if hasVolume {
			f.Volume[out] = t.Columns[vi].Values[row]
		}
	}
	return f, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ReadCSV loads a bar table from a CSV file. The first column named "date"
// (case-insensitive) is the index; every other column becomes a value
// column with non-numeric cells coerced to NaN.
func ReadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read bar file %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("bar file %s has no data rows", path)
	}

	header := records[0]
	dateCol := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "date") {
			dateCol = i
			break
		}
	}
	if dateCol == -1 {
		dateCol = 0
	}

	t := &Table{}
	for i, h := range header {
		if i == dateCol {
			continue
		}
		t.Columns = append(t.Columns, Column{Label: []string{h}})
	}

	for _, rec := range records[1:] {
		if len(rec) != len(header) {
			continue
		}
		ts, err := parseDate(rec[dateCol])
		if err != nil {
			continue
		}
		t.Dates = append(t.Dates, ts)
		col := 0
		for i, cell := range rec {
			if i == dateCol {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				v = math.NaN()
			}
			t.Columns[col].Values = append(t.Columns[col].Values, v)
			col++
		}
	}
	if len(t.Dates) == 0 {
		return nil, fmt.Errorf("bar file %s has no parseable rows", path)
	}
	return t, nil
}
