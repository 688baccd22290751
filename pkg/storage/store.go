package storage

import (
	"time"

	"github.com/semillacaramelo/ftba/pkg/types"
)

// StrategyRecord holds the tunable parameters of one trading strategy
type StrategyRecord struct {
	Name                string    `json:"name"`
	Enabled             bool      `json:"enabled"`
	MinConfidence       int       `json:"min_confidence"`
	DefaultSize         float64   `json:"default_size"`
	StopLossPips        float64   `json:"stop_loss_pips"`
	TakeProfitPips      float64   `json:"take_profit_pips"`
	TimeLimitSeconds    int       `json:"time_limit_seconds"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PerformanceSnapshot aggregates the observed results of one strategy
type PerformanceSnapshot struct {
	Strategy     string    `json:"strategy"`
	Trades       int       `json:"trades"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	WinRate      float64   `json:"win_rate"`
	AvgWin       float64   `json:"avg_win"`
	AvgLoss      float64   `json:"avg_loss"`
	ProfitFactor float64   `json:"profit_factor"`
	NetProfit    float64   `json:"net_profit"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists strategy parameters, performance snapshots, and closed trade
// results across restarts. A corrupt record is discarded and reads as absent
// rather than failing the caller.
type Store interface {
	// Strategies
	SaveStrategy(record *StrategyRecord) error
	GetStrategy(name string) (*StrategyRecord, error)
	ListStrategies() ([]*StrategyRecord, error)

	// Performance
	SavePerformance(snapshot *PerformanceSnapshot) error
	GetPerformance(strategy string) (*PerformanceSnapshot, error)
	ListPerformance() ([]*PerformanceSnapshot, error)

	// Results
	SaveResult(result *types.TradeResult) error
	ListResults() ([]*types.TradeResult, error)

	// Utility
	Close() error
}
