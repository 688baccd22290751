package technical

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/agent"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/gateway"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// ID is the technical analysis agent's identity on the broker
const ID = "technical_analysis"

// minHistory is the fewest prices needed before indicators fire
const minHistory = 50

// Agent builds per-symbol price histories from market data and gateway
// quotes, and emits directional signals from EMA crossovers and RSI levels.
type Agent struct {
	*agent.BaseAgent
	cfg     config.TechnicalConfig
	gateway gateway.Gateway // optional; nil relies on market_data traffic
	logger  zerolog.Logger

	history    map[string][]float64
	watched    []string
	lastUpdate time.Time
}

// New creates the technical analysis agent. The gateway may be nil.
func New(b *broker.Broker, cfg config.TechnicalConfig, gw gateway.Gateway) *Agent {
	a := &Agent{
		cfg:     cfg,
		gateway: gw,
		logger:  log.WithAgent(ID),
		history: make(map[string][]float64),
	}
	a.BaseAgent = agent.New(ID, b, a, agent.Options{
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval(),
	})
	return a
}

// Setup subscribes to market data and availability updates
func (a *Agent) Setup(ctx context.Context) error {
	a.SubscribeTo(
		types.MessageMarketData,
		types.MessageSystemStatus,
	)
	return nil
}

// Cleanup has nothing to release
func (a *Agent) Cleanup(ctx context.Context) error {
	return nil
}

// HandleMessage feeds quotes into the history and follows the watch list
func (a *Agent) HandleMessage(ctx context.Context, msg *types.Message) error {
	switch payload := msg.Payload.(type) {
	case types.MarketData:
		a.appendPrice(payload.Symbol, payload.Mid())
	case types.SystemStatus:
		if payload.Event == types.EventAssetAvailabilityUpdate {
			a.watched = payload.RecommendedAssets
		}
	}
	return nil
}

func (a *Agent) appendPrice(symbol string, price float64) {
	prices := append(a.history[symbol], price)
	if len(prices) > a.cfg.MaxHistory {
		prices = prices[len(prices)-a.cfg.MaxHistory:]
	}
	a.history[symbol] = prices
}

// ProcessCycle samples watched symbols and analyzes every history with
// enough depth, at most once per interval
func (a *Agent) ProcessCycle(ctx context.Context) error {
	now := time.Now().UTC()
	if now.Sub(a.lastUpdate) < a.cfg.UpdateInterval() {
		return nil
	}
	a.lastUpdate = now

	if a.gateway != nil {
		for _, symbol := range a.watched {
			if price, ok := a.gateway.CurrentPrice(symbol); ok {
				a.appendPrice(symbol, price)
			}
		}
	}

	for symbol, prices := range a.history {
		if len(prices) >= minHistory {
			a.analyze(symbol, prices, now)
		}
	}
	return nil
}

// analyze emits at most one EMA-crossover and one RSI signal per pass
func (a *Agent) analyze(symbol string, prices []float64, now time.Time) {
	emaFast := ema(prices, 9)
	emaSlow := ema(prices, 20)
	if signal, ok := crossoverSignal(symbol, emaFast, emaSlow, now); ok {
		a.emit(signal)
	}

	if signal, ok := rsiSignal(symbol, prices, 14, now); ok {
		a.emit(signal)
	}
}

func (a *Agent) emit(signal types.TechnicalSignal) {
	if signal.Value < a.cfg.SignalThreshold {
		return
	}
	a.logger.Debug().
		Str("symbol", signal.Symbol).
		Str("indicator", signal.Indicator).
		Str("direction", string(signal.Direction)).
		Msg("Emitting signal")
	a.SendMessage(types.MessageTechnicalSignal, signal)
}

// ema computes the exponential moving average series for a period
func ema(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1-k)
	}
	return out
}

// crossoverSignal fires when the fast EMA crossed the slow EMA on the last
// step. Strength grows with the separation after the cross.
func crossoverSignal(symbol string, fast, slow []float64, now time.Time) (types.TechnicalSignal, bool) {
	n := len(fast)
	if n < 2 || len(slow) != n {
		return types.TechnicalSignal{}, false
	}

	prevDelta := fast[n-2] - slow[n-2]
	delta := fast[n-1] - slow[n-1]

	var direction types.Direction
	switch {
	case prevDelta <= 0 && delta > 0:
		direction = types.DirectionLong
	case prevDelta >= 0 && delta < 0:
		direction = types.DirectionShort
	default:
		return types.TechnicalSignal{}, false
	}

	separation := delta
	if separation < 0 {
		separation = -separation
	}
	strength := separation / types.PipSize(symbol) / 10 // 10 pips apart = 1.0
	if strength > 1 {
		strength = 1
	}

	return types.TechnicalSignal{
		Symbol:     symbol,
		Timeframe:  types.TimeframeM1,
		Indicator:  "EMA Crossover",
		Direction:  direction,
		Confidence: confidenceFromStrength(strength),
		Value:      strength,
		Timestamp:  now,
	}, true
}

// rsiSignal fires on oversold (long) and overbought (short) RSI readings
func rsiSignal(symbol string, prices []float64, period int, now time.Time) (types.TechnicalSignal, bool) {
	value, ok := rsi(prices, period)
	if !ok {
		return types.TechnicalSignal{}, false
	}

	var direction types.Direction
	var strength float64
	switch {
	case value < 30:
		direction = types.DirectionLong
		strength = (30 - value) / 30
	case value > 70:
		direction = types.DirectionShort
		strength = (value - 70) / 30
	default:
		return types.TechnicalSignal{}, false
	}

	return types.TechnicalSignal{
		Symbol:     symbol,
		Timeframe:  types.TimeframeM1,
		Indicator:  "RSI",
		Direction:  direction,
		Confidence: confidenceFromStrength(strength),
		Value:      0.7 + strength*0.3,
		Timestamp:  now,
	}, true
}

// rsi computes the relative strength index over the trailing period
func rsi(prices []float64, period int) (float64, bool) {
	if len(prices) <= period {
		return 0, false
	}

	gains, losses := 0.0, 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100, true
	}
	rs := gains / losses
	return 100 - 100/(1+rs), true
}

func confidenceFromStrength(strength float64) types.Confidence {
	switch {
	case strength >= 0.9:
		return types.ConfidenceVeryHigh
	case strength >= 0.6:
		return types.ConfidenceHigh
	case strength >= 0.3:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
