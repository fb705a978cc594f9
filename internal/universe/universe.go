// Package universe loads the symbol list a screening run iterates over.
package universe

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Load reads a universe CSV and returns its cleaned symbol list. The
// symbol column is found case-insensitively by name, falling back to the
// first column. Symbols are trimmed, upper-cased, deduplicated in order,
// and capped at maxSymbols when it is positive.
func Load(path string, maxSymbols int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read universe %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("universe %s is empty", path)
	}

	col := 0
	for i, name := range records[0] {
		if strings.EqualFold(strings.TrimSpace(name), "symbol") {
			col = i
			break
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, rec := range records[1:] {
		if col >= len(rec) {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(rec[col]))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
		if maxSymbols > 0 && len(out) >= maxSymbols {
			break
		}
	}
	return out, nil
}
