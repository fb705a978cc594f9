// Command prefilter screens a universe CSV once and writes the passed
// symbols plus a full per-symbol report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"squeeze-screener/internal/gate"
	"squeeze-screener/internal/logging"
	"squeeze-screener/internal/marketdata"
	"squeeze-screener/internal/screener"
	"squeeze-screener/internal/strategy"
	"squeeze-screener/internal/universe"
)

func main() {
	inPath := flag.String("in", "", "input universe CSV")
	outPath := flag.String("out", "", "output filtered CSV (symbol column)")
	maxSymbols := flag.Int("max", 150, "max symbols to test")
	days := flag.Int("period", 300, "history window in days")
	loose := flag.Bool("loose", false, "looser gate: breakout OR squeeze instead of both")
	workers := flag.Int("workers", 4, "concurrent workers")
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	symbols, err := universe.Load(*inPath, *maxSymbols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}

	params := gate.DefaultParams()
	if *loose {
		params.Mode = gate.ModeLoose
	}

	logging.SetDefault(logging.New(&logging.Config{
		Level:     "INFO",
		Output:    "stderr",
		Component: "prefilter",
	}))

	eng := screener.New(
		marketdata.NewYahooFetcher(os.Getenv("MARKETDATA_PROXY")),
		params,
		strategy.New(strategy.DefaultConfig()),
		nil,
		screener.Config{WorkerCount: *workers, Days: *days},
	)

	res, err := eng.Run(context.Background(), symbols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	if err := screener.WriteOutputs(res, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: %d/%d passed the gate -> %s\n", len(res.Passed), len(symbols), *outPath)
	fmt.Printf("Report saved -> %s\n", screener.ReportPath(*outPath))
}
