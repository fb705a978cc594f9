package frame

import (
	"fmt"
	"strings"
)

// Role name candidates for the canonical OHLCV columns, tried in order.
var (
	OpenCandidates   = []string{"open", "o"}
	HighCandidates   = []string{"high", "h"}
	LowCandidates    = []string{"low", "l"}
	CloseCandidates  = []string{"close", "adj close", "c"}
	VolumeCandidates = []string{"volume", "vol", "v"}
)

// MissingColumnError reports that no column matched a required role.
type MissingColumnError struct {
	Candidates []string
	Available  []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column: tried %v in %v", e.Candidates, e.Available)
}

// canonLabel normalizes a column label to a lowercase trimmed string. For
// composite labels the last non-empty part wins, which handles both
// (field, ticker) and (ticker, field) orderings.
func canonLabel(parts []string) string {
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return strings.ToLower(s)
		}
	}
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
}

// expandKeys returns the three lookup keys for a canonical name: as-is,
// spaces removed, spaces and underscores removed.
func expandKeys(name string) []string {
	k := strings.ToLower(name)
	nospace := strings.ReplaceAll(k, " ", "")
	bare := strings.ReplaceAll(nospace, "_", "")
	return []string{k, nospace, bare}
}

// Resolve finds the single column of t matching one of the candidate role
// names. Exact key matches are tried first in candidate order; substring
// containment is the fallback for vendor-specific header variants.
func Resolve(t *Table, candidates []string) (int, error) {
	keys := make(map[string]int)
	order := make([]string, 0, len(t.Columns))
	for idx, col := range t.Columns {
		canon := canonLabel(col.Label)
		order = append(order, canon)
		for _, k := range expandKeys(canon) {
			if _, taken := keys[k]; !taken {
				keys[k] = idx
			}
		}
	}

	var want []string
	for _, name := range candidates {
		want = append(want, expandKeys(name)...)
	}

	for _, w := range want {
		if idx, ok := keys[w]; ok {
			return idx, nil
		}
	}

	// Loose containment pass, in column order for determinism.
	for idx, canon := range order {
		for _, k := range expandKeys(canon) {
			for _, w := range want {
				if strings.Contains(k, w) {
					return idx, nil
				}
			}
		}
	}

	return -1, &MissingColumnError{Candidates: candidates, Available: order}
}
