package universe

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadSymbolColumn tests case-insensitive symbol column detection
func TestLoadSymbolColumn(t *testing.T) {
	path := writeTemp(t, "Name,SYMBOL\nApple,aapl\nMicrosoft, msft \n")
	syms, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Should load, got error: %v", err)
	}
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "MSFT" {
		t.Errorf("Should trim and upper-case symbols, got %v", syms)
	}
}

// TestLoadFirstColumnFallback tests behavior without a symbol header
func TestLoadFirstColumnFallback(t *testing.T) {
	path := writeTemp(t, "ticker,name\nAAPL,Apple\nMSFT,Microsoft\n")
	syms, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Should load, got error: %v", err)
	}
	if len(syms) != 2 || syms[0] != "AAPL" {
		t.Errorf("Should fall back to the first column, got %v", syms)
	}
}

// TestLoadDedupesAndDropsEmpties tests cleaning
func TestLoadDedupesAndDropsEmpties(t *testing.T) {
	path := writeTemp(t, "symbol\nAAPL\n\nAAPL\nmsft\n  \n")
	syms, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Should load, got error: %v", err)
	}
	if len(syms) != 2 {
		t.Errorf("Should drop empties and duplicates, got %v", syms)
	}
}

// TestLoadCap tests the max-symbols cap
func TestLoadCap(t *testing.T) {
	path := writeTemp(t, "symbol\nA\nB\nC\nD\n")
	syms, err := Load(path, 2)
	if err != nil {
		t.Fatalf("Should load, got error: %v", err)
	}
	if len(syms) != 2 || syms[1] != "B" {
		t.Errorf("Should cap in order, got %v", syms)
	}
}

// TestLoadMissingFile tests the open error path
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.csv"), 0); err == nil {
		t.Error("Should fail on a missing file")
	}
}
