// Package config loads the screener's configuration: a JSON base file
// with environment variable overrides, plus an optional YAML strategy
// overlay carrying the strategycfg namespace.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"squeeze-screener/internal/gate"
	"squeeze-screener/internal/strategy"
)

type Config struct {
	GateConfig       GateConfig       `json:"gate"`
	ScreenerConfig   ScreenerConfig   `json:"screener"`
	MarketDataConfig MarketDataConfig `json:"marketdata"`
	RecorderConfig   RecorderConfig   `json:"recorder"`
	ScheduleConfig   ScheduleConfig   `json:"schedule"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	StrategyConfig   strategy.Config  `json:"strategycfg"`
}

// GateConfig mirrors the gate tunables. Zero values fall back to the
// gate package defaults.
type GateConfig struct {
	BandPeriod       int     `json:"band_period"`
	BandStdMult      float64 `json:"band_std_mult"`
	ATRPeriod        int     `json:"atr_period"`
	PctileWindow     int     `json:"pctile_window"`
	BBWidthPctileMax float64 `json:"bb_width_pctile_max"`
	ATRPctileMax     float64 `json:"atr_pctile_max"`
	LoosePctileBBW   float64 `json:"loose_pctile_bbw"`
	LoosePctileATR   float64 `json:"loose_pctile_atr"`
	TightRangePct    float64 `json:"tight_range_pct"`
	ATRRatioMax      float64 `json:"atr_ratio_max"`
	ATRLongPeriod    int     `json:"atr_long_period"`
	LookbackShort    int     `json:"lookback_short"`
	LookbackLong     int     `json:"lookback_long"`
	MaxRows          int     `json:"max_rows"`
	Mode             string  `json:"mode"`           // "strict" or "loose"
	SqueezePolicy    string  `json:"squeeze_policy"` // "percentile" or "range"
	ForceDisable     bool    `json:"force_disable"`
}

type ScreenerConfig struct {
	UniversePath string `json:"universe_path"`
	OutPath      string `json:"out_path"`
	MaxSymbols   int    `json:"max_symbols"`
	WorkerCount  int    `json:"worker_count"`
	Days         int    `json:"days"`
	MinRows      int    `json:"min_rows"`
	TimeoutSec   int    `json:"timeout_sec"`
}

type MarketDataConfig struct {
	ProxyURL    string `json:"proxy_url"`
	CacheTTLSec int    `json:"cache_ttl_sec"`
}

type RecorderConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"db_path"`
}

// ScheduleConfig controls the daemon's cron trigger. An empty spec
// means one-shot mode.
type ScheduleConfig struct {
	CronSpec string `json:"cron_spec"` // e.g. "0 30 21 * * MON-FRI"
}

type LoggingConfig struct {
	Level      string `json:"level"`  // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"`
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides; they take
// precedence over the file values.
func applyEnvOverrides(cfg *Config) {
	// Gate config
	cfg.GateConfig.BandPeriod = getEnvIntOrDefault("GATE_BAND_PERIOD", cfg.GateConfig.BandPeriod)
	cfg.GateConfig.ATRPeriod = getEnvIntOrDefault("GATE_ATR_PERIOD", cfg.GateConfig.ATRPeriod)
	cfg.GateConfig.PctileWindow = getEnvIntOrDefault("GATE_PCTILE_WINDOW", cfg.GateConfig.PctileWindow)
	cfg.GateConfig.BBWidthPctileMax = getEnvFloatOrDefault("GATE_BBW_PCTL", cfg.GateConfig.BBWidthPctileMax)
	cfg.GateConfig.ATRPctileMax = getEnvFloatOrDefault("GATE_ATR_PCTL", cfg.GateConfig.ATRPctileMax)
	cfg.GateConfig.TightRangePct = getEnvFloatOrDefault("GATE_TIGHTRANGE_PCT", cfg.GateConfig.TightRangePct)
	cfg.GateConfig.ATRRatioMax = getEnvFloatOrDefault("GATE_ATR_RATIO", cfg.GateConfig.ATRRatioMax)
	cfg.GateConfig.LookbackShort = getEnvIntOrDefault("GATE_HH_N", cfg.GateConfig.LookbackShort)
	cfg.GateConfig.Mode = getEnvOrDefault("GATE_MODE", cfg.GateConfig.Mode)
	cfg.GateConfig.SqueezePolicy = getEnvOrDefault("GATE_SQUEEZE_POLICY", cfg.GateConfig.SqueezePolicy)
	cfg.GateConfig.ForceDisable = getEnvOrDefault("GATE_FORCE_DISABLE", boolStr(cfg.GateConfig.ForceDisable)) == "true"

	// Screener config
	cfg.ScreenerConfig.UniversePath = getEnvOrDefault("SCREENER_UNIVERSE", cfg.ScreenerConfig.UniversePath)
	cfg.ScreenerConfig.OutPath = getEnvOrDefault("SCREENER_OUT", cfg.ScreenerConfig.OutPath)
	cfg.ScreenerConfig.MaxSymbols = getEnvIntOrDefault("SCREENER_MAX_SYMBOLS", cfg.ScreenerConfig.MaxSymbols)
	cfg.ScreenerConfig.WorkerCount = getEnvIntOrDefault("SCREENER_WORKERS", cfg.ScreenerConfig.WorkerCount)
	cfg.ScreenerConfig.Days = getEnvIntOrDefault("SCREENER_DAYS", cfg.ScreenerConfig.Days)
	cfg.ScreenerConfig.MinRows = getEnvIntOrDefault("SCREENER_MIN_ROWS", cfg.ScreenerConfig.MinRows)

	// Market data config
	cfg.MarketDataConfig.ProxyURL = getEnvOrDefault("MARKETDATA_PROXY", cfg.MarketDataConfig.ProxyURL)
	cfg.MarketDataConfig.CacheTTLSec = getEnvIntOrDefault("MARKETDATA_CACHE_TTL", cfg.MarketDataConfig.CacheTTLSec)

	// Recorder config
	cfg.RecorderConfig.Enabled = getEnvOrDefault("RECORDER_ENABLED", boolStr(cfg.RecorderConfig.Enabled)) == "true"
	cfg.RecorderConfig.DBPath = getEnvOrDefault("RECORDER_DB", cfg.RecorderConfig.DBPath)
	if cfg.RecorderConfig.DBPath == "" {
		cfg.RecorderConfig.DBPath = "screener.db"
	}

	// Schedule config
	cfg.ScheduleConfig.CronSpec = getEnvOrDefault("SCHEDULE_CRON", cfg.ScheduleConfig.CronSpec)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

// strategyOverlay is the YAML document shape for the strategycfg
// namespace overlay.
type strategyOverlay struct {
	StrategyCfg strategy.Config `yaml:"strategycfg"`
}

// LoadStrategyOverlay reads a YAML overlay file and merges its
// strategycfg section over cfg. A missing file leaves cfg untouched.
func (c *Config) LoadStrategyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read overlay %s: %w", path, err)
	}

	var overlay strategyOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse overlay %s: %w", path, err)
	}

	if overlay.StrategyCfg.BreakoutATRBuf > 0 {
		c.StrategyConfig.BreakoutATRBuf = overlay.StrategyCfg.BreakoutATRBuf
	}
	if overlay.StrategyCfg.TrailATRMult > 0 {
		c.StrategyConfig.TrailATRMult = overlay.StrategyCfg.TrailATRMult
	}
	if overlay.StrategyCfg.ATRPctMax > 0 {
		c.StrategyConfig.ATRPctMax = overlay.StrategyCfg.ATRPctMax
	}
	return nil
}

// GateParams maps the gate section onto gate.Params. Unset values are
// filled with the gate package defaults at evaluation time.
func (c *Config) GateParams() gate.Params {
	return gate.Params{
		BandPeriod:       c.GateConfig.BandPeriod,
		BandStdMult:      c.GateConfig.BandStdMult,
		ATRPeriod:        c.GateConfig.ATRPeriod,
		PctileWindow:     c.GateConfig.PctileWindow,
		BBWidthPctileMax: c.GateConfig.BBWidthPctileMax,
		ATRPctileMax:     c.GateConfig.ATRPctileMax,
		LoosePctileBBW:   c.GateConfig.LoosePctileBBW,
		LoosePctileATR:   c.GateConfig.LoosePctileATR,
		TightRangePct:    c.GateConfig.TightRangePct,
		ATRRatioMax:      c.GateConfig.ATRRatioMax,
		ATRLongPeriod:    c.GateConfig.ATRLongPeriod,
		LookbackShort:    c.GateConfig.LookbackShort,
		LookbackLong:     c.GateConfig.LookbackLong,
		MaxRows:          c.GateConfig.MaxRows,
		Mode:             gate.Mode(c.GateConfig.Mode),
		SqueezePolicy:    gate.SqueezePolicy(c.GateConfig.SqueezePolicy),
		ForceDisable:     c.GateConfig.ForceDisable,
	}
}

// ScreenerTimeout returns the configured per-run deadline.
func (c *Config) ScreenerTimeout() time.Duration {
	if c.ScreenerConfig.TimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.ScreenerConfig.TimeoutSec) * time.Second
}

// CacheTTL returns the bar cache TTL.
func (c *Config) CacheTTL() time.Duration {
	if c.MarketDataConfig.CacheTTLSec <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.MarketDataConfig.CacheTTLSec) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GenerateSampleConfig writes a commented starting config file.
func GenerateSampleConfig(filename string) error {
	sample := Config{
		GateConfig: GateConfig{
			BandPeriod:       20,
			BandStdMult:      2.0,
			ATRPeriod:        14,
			PctileWindow:     252,
			BBWidthPctileMax: 0.15,
			ATRPctileMax:     0.20,
			LoosePctileBBW:   0.25,
			LoosePctileATR:   0.35,
			TightRangePct:    0.06,
			ATRRatioMax:      0.65,
			ATRLongPeriod:    100,
			LookbackShort:    20,
			LookbackLong:     50,
			MaxRows:          320,
			Mode:             "strict",
			SqueezePolicy:    "percentile",
		},
		ScreenerConfig: ScreenerConfig{
			UniversePath: "universe.csv",
			OutPath:      "passed.csv",
			MaxSymbols:   150,
			WorkerCount:  4,
			Days:         300,
			MinRows:      120,
			TimeoutSec:   600,
		},
		MarketDataConfig: MarketDataConfig{CacheTTLSec: 900},
		RecorderConfig:   RecorderConfig{Enabled: true, DBPath: "screener.db"},
		ScheduleConfig:   ScheduleConfig{CronSpec: ""},
		LoggingConfig:    LoggingConfig{Level: "INFO", Output: "stdout", JSONFormat: true},
		StrategyConfig:   strategy.DefaultConfig(),
	}

	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
