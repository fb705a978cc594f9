// Command squeeze-screener runs the squeeze/breakout screen over a
// symbol universe, either once or on a cron schedule.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"squeeze-screener/config"
	"squeeze-screener/internal/logging"
	"squeeze-screener/internal/marketdata"
	"squeeze-screener/internal/recorder"
	"squeeze-screener/internal/screener"
	"squeeze-screener/internal/strategy"
	"squeeze-screener/internal/universe"
)

func main() {
	overlayPath := flag.String("overlay", "", "YAML strategy overlay file")
	sampleConfig := flag.String("generate-config", "", "write a sample config file and exit")
	flag.Parse()

	if *sampleConfig != "" {
		if err := config.GenerateSampleConfig(*sampleConfig); err != nil {
			logging.Fatal("writing sample config failed", "error", err)
		}
		logging.Info("sample config written", "path", *sampleConfig)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("loading config failed", "error", err)
	}
	if *overlayPath != "" {
		if err := cfg.LoadStrategyOverlay(*overlayPath); err != nil {
			logging.Fatal("loading strategy overlay failed", "error", err)
		}
	}

	logging.SetDefault(logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		Component:  "screener",
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	}))
	log := logging.Default()

	if cfg.ScreenerConfig.UniversePath == "" {
		log.Fatal("no universe file configured")
	}

	fetcher := marketdata.NewBarCache(
		marketdata.NewYahooFetcher(cfg.MarketDataConfig.ProxyURL),
		cfg.CacheTTL(),
	)

	var rec recorder.Recorder = recorder.Noop{}
	if cfg.RecorderConfig.Enabled {
		zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
		sq, err := recorder.NewSQLiteRecorder(cfg.RecorderConfig.DBPath, zl)
		if err != nil {
			log.Fatal("opening recorder failed", "error", err)
		}
		defer sq.Close()
		rec = sq
	}

	eng := screener.New(
		fetcher,
		cfg.GateParams(),
		strategy.New(cfg.StrategyConfig),
		rec,
		screener.Config{
			WorkerCount: cfg.ScreenerConfig.WorkerCount,
			Days:        cfg.ScreenerConfig.Days,
			MinRows:     cfg.ScreenerConfig.MinRows,
			Timeout:     cfg.ScreenerTimeout(),
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runOnce := func() {
		symbols, err := universe.Load(cfg.ScreenerConfig.UniversePath, cfg.ScreenerConfig.MaxSymbols)
		if err != nil {
			log.Error("loading universe failed", "error", err)
			return
		}
		res, err := eng.Run(ctx, symbols)
		if err != nil {
			log.Error("screen failed", "error", err)
			return
		}
		if cfg.ScreenerConfig.OutPath != "" {
			if err := screener.WriteOutputs(res, cfg.ScreenerConfig.OutPath); err != nil {
				log.Error("writing outputs failed", "error", err)
				return
			}
			log.Info("outputs written",
				"passed", cfg.ScreenerConfig.OutPath,
				"report", screener.ReportPath(cfg.ScreenerConfig.OutPath))
		}
	}

	if cfg.ScheduleConfig.CronSpec == "" {
		runOnce()
		return
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.ScheduleConfig.CronSpec, runOnce); err != nil {
		log.Fatal("registering schedule failed", "spec", cfg.ScheduleConfig.CronSpec, "error", err)
	}
	c.Start()
	log.Info("scheduler started", "spec", cfg.ScheduleConfig.CronSpec)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping")
	c.Stop()
	cancel()
}
