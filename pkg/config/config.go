package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig holds the runtime knobs shared by every agent
type AgentConfig struct {
	UpdateIntervalSeconds int `yaml:"update_interval_seconds"`
	BatchSize             int `yaml:"batch_size"`
	BatchIntervalMs       int `yaml:"batch_interval_ms"`
}

// UpdateInterval returns the periodic pass interval
func (a AgentConfig) UpdateInterval() time.Duration {
	return time.Duration(a.UpdateIntervalSeconds) * time.Second
}

// BatchInterval returns the outbound batch flush interval
func (a AgentConfig) BatchInterval() time.Duration {
	return time.Duration(a.BatchIntervalMs) * time.Millisecond
}

// SystemConfig covers process-wide settings
type SystemConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
	DataDir     string `yaml:"data_dir"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// BrokerConfig covers the message broker
type BrokerConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	InboxCapacity   int `yaml:"inbox_capacity"`
}

// CacheTTL returns the subscriber cache freshness window
func (b BrokerConfig) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLSeconds) * time.Second
}

// GatewayConfig covers the execution gateway
type GatewayConfig struct {
	Type                 string  `yaml:"type"` // "simulation" or "deriv"
	Demo                 bool    `yaml:"demo"`
	Endpoint             string  `yaml:"endpoint"`
	AppID                string  `yaml:"app_id"`
	APIToken             string  `yaml:"api_token"`
	SlippageModel        string  `yaml:"slippage_model"` // "fixed" or "proportional"
	FixedSlippagePips    float64 `yaml:"fixed_slippage_pips"`
	ProportionalSlippage float64 `yaml:"proportional_slippage"`
}

// TechnicalConfig covers the technical analysis agent
type TechnicalConfig struct {
	AgentConfig     `yaml:",inline"`
	SignalThreshold float64 `yaml:"signal_threshold"`
	MaxHistory      int     `yaml:"max_history"`
}

// FundamentalConfig covers the fundamental analysis agent
type FundamentalConfig struct {
	AgentConfig        `yaml:",inline"`
	EventWarningMins   int `yaml:"event_warning_minutes"`
}

// StrategyConfig covers the strategy optimization agent
type StrategyConfig struct {
	AgentConfig          `yaml:",inline"`
	SignalFreshnessSecs  int     `yaml:"signal_freshness_seconds"`
	DefaultSize          float64 `yaml:"default_size"`
	DefaultStopPips      float64 `yaml:"default_stop_pips"`
	DefaultTakePips      float64 `yaml:"default_take_pips"`
	DefaultTimeLimitSecs int     `yaml:"default_time_limit_seconds"`
	LosingStreakLimit    int     `yaml:"losing_streak_limit"`
}

// RiskConfig covers the risk management agent
type RiskConfig struct {
	AgentConfig           `yaml:",inline"`
	MaxAccountRiskPercent float64 `yaml:"max_account_risk_percent"`
	MaxPositionPercent    float64 `yaml:"max_position_size_percent"`
	MaxDailyLossPercent   float64 `yaml:"max_daily_loss_percent"`
	InitialBalance        float64 `yaml:"initial_balance"`
}

// TradingHours is a per-weekday open/close table in "HH:MM" UTC. A missing
// or empty entry means the market is closed that day.
type TradingHours map[string]DaySchedule

// DaySchedule is one weekday's open and close
type DaySchedule struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// AssetSelectionConfig covers the asset selection agent
type AssetSelectionConfig struct {
	AgentConfig      `yaml:",inline"`
	PrimaryAssets    []string     `yaml:"primary_assets"`
	FallbackAssets   []string     `yaml:"fallback_assets"`
	TradingHours     TradingHours `yaml:"trading_hours"`
	ToleranceMinutes int          `yaml:"tolerance_minutes"`
}

// ExecutionConfig covers the trade execution agent
type ExecutionConfig struct {
	AgentConfig             `yaml:",inline"`
	MaxHoldMinutes          int `yaml:"max_hold_minutes"`
	AvailabilityRefreshSecs int `yaml:"availability_refresh_seconds"`
}

// Config is the root configuration document
type Config struct {
	System         SystemConfig         `yaml:"system"`
	Broker         BrokerConfig         `yaml:"broker"`
	Gateway        GatewayConfig        `yaml:"gateway"`
	Technical      TechnicalConfig      `yaml:"technical_analysis"`
	Fundamental    FundamentalConfig    `yaml:"fundamental_analysis"`
	Strategy       StrategyConfig       `yaml:"strategy_optimization"`
	Risk           RiskConfig           `yaml:"risk_management"`
	AssetSelection AssetSelectionConfig `yaml:"asset_selection"`
	Execution      ExecutionConfig      `yaml:"execution"`
}

// Default returns the configuration used when a section is omitted
func Default() *Config {
	return &Config{
		System: SystemConfig{
			LogLevel:    "info",
			DataDir:     "data",
			MetricsAddr: ":9090",
		},
		Broker: BrokerConfig{
			CacheTTLSeconds: 5,
		},
		Gateway: GatewayConfig{
			Type:              "simulation",
			Demo:              true,
			SlippageModel:     "fixed",
			FixedSlippagePips: 1.0,
		},
		Technical: TechnicalConfig{
			AgentConfig:     AgentConfig{UpdateIntervalSeconds: 60, BatchSize: 10, BatchIntervalMs: 500},
			SignalThreshold: 0.7,
			MaxHistory:      500,
		},
		Fundamental: FundamentalConfig{
			AgentConfig:      AgentConfig{UpdateIntervalSeconds: 300, BatchSize: 10, BatchIntervalMs: 500},
			EventWarningMins: 30,
		},
		Strategy: StrategyConfig{
			AgentConfig:          AgentConfig{UpdateIntervalSeconds: 60, BatchSize: 10, BatchIntervalMs: 500},
			SignalFreshnessSecs:  300,
			DefaultSize:          10000,
			DefaultStopPips:      50,
			DefaultTakePips:      100,
			DefaultTimeLimitSecs: 3600,
			LosingStreakLimit:    5,
		},
		Risk: RiskConfig{
			AgentConfig:           AgentConfig{UpdateIntervalSeconds: 60, BatchSize: 10, BatchIntervalMs: 500},
			MaxAccountRiskPercent: 2.0,
			MaxPositionPercent:    5.0,
			MaxDailyLossPercent:   5.0,
			InitialBalance:        100000,
		},
		AssetSelection: AssetSelectionConfig{
			AgentConfig:      AgentConfig{UpdateIntervalSeconds: 60, BatchSize: 10, BatchIntervalMs: 500},
			PrimaryAssets:    []string{"EUR/USD", "GBP/USD", "USD/JPY", "AUD/USD"},
			FallbackAssets:   []string{"USD/CAD", "NZD/USD", "EUR/GBP", "USD/CHF"},
			ToleranceMinutes: 30,
			TradingHours: TradingHours{
				"monday":    {Open: "00:00", Close: "24:00"},
				"tuesday":   {Open: "00:00", Close: "24:00"},
				"wednesday": {Open: "00:00", Close: "24:00"},
				"thursday":  {Open: "00:00", Close: "24:00"},
				"friday":    {Open: "00:00", Close: "22:00"},
				"sunday":    {Open: "22:00", Close: "24:00"},
			},
		},
		Execution: ExecutionConfig{
			AgentConfig:             AgentConfig{UpdateIntervalSeconds: 1, BatchSize: 10, BatchIntervalMs: 500},
			MaxHoldMinutes:          240,
			AvailabilityRefreshSecs: 300,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var problems []string

	switch c.System.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("system.log_level: unknown level %q", c.System.LogLevel))
	}

	switch c.Gateway.Type {
	case "simulation", "deriv":
	default:
		problems = append(problems, fmt.Sprintf("gateway.type: unknown gateway %q", c.Gateway.Type))
	}

	switch c.Gateway.SlippageModel {
	case "fixed", "proportional":
	default:
		problems = append(problems, fmt.Sprintf("gateway.slippage_model: unknown model %q", c.Gateway.SlippageModel))
	}

	if c.Broker.InboxCapacity < 0 {
		problems = append(problems, "broker.inbox_capacity: must be zero or positive")
	}

	if c.Risk.InitialBalance <= 0 {
		problems = append(problems, "risk_management.initial_balance: must be positive")
	}
	for name, pct := range map[string]float64{
		"risk_management.max_account_risk_percent":  c.Risk.MaxAccountRiskPercent,
		"risk_management.max_position_size_percent": c.Risk.MaxPositionPercent,
		"risk_management.max_daily_loss_percent":    c.Risk.MaxDailyLossPercent,
	} {
		if pct <= 0 || pct > 100 {
			problems = append(problems, fmt.Sprintf("%s: must be in (0, 100]", name))
		}
	}

	if len(c.AssetSelection.PrimaryAssets) == 0 {
		problems = append(problems, "asset_selection.primary_assets: at least one symbol required")
	}
	for day := range c.AssetSelection.TradingHours {
		switch day {
		case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		default:
			problems = append(problems, fmt.Sprintf("asset_selection.trading_hours: unknown weekday %q", day))
		}
	}

	if c.Execution.MaxHoldMinutes <= 0 {
		problems = append(problems, "execution.max_hold_minutes: must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
