package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/agent"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/storage"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// ID is the strategy agent's identity on the broker
const ID = "strategy_optimization"

// strategyState pairs a strategy's parameters with its observed performance
type strategyState struct {
	record       storage.StrategyRecord
	performance  storage.PerformanceSnapshot
	losingStreak int
	grossWin     float64
	grossLoss    float64
}

// cachedSignal is a technical signal plus its arrival time
type cachedSignal struct {
	signal types.TechnicalSignal
	at     time.Time
}

// cachedFundamental is the latest fundamental view of one currency
type cachedFundamental struct {
	update types.FundamentalUpdate
	at     time.Time
}

// Agent turns analysis traffic into trade proposals and feeds results back
// into per-strategy performance and parameter tuning.
type Agent struct {
	*agent.BaseAgent
	cfg    config.StrategyConfig
	store  storage.Store
	logger zerolog.Logger

	strategies   map[string]*strategyState
	signals      map[string][]cachedSignal // symbol -> recent signals
	fundamentals map[string]cachedFundamental
	proposals    map[string]string // proposal id -> strategy name
	statuses     map[string]types.TradeStatus

	lastUpdate time.Time
}

// indicator affinity per built-in strategy
var builtinStrategies = map[string]string{
	"ema_crossover": "EMA Crossover",
	"rsi_reversal":  "RSI",
}

// New creates the strategy optimization agent. The store may be nil, in
// which case tuning is not persisted.
func New(b *broker.Broker, cfg config.StrategyConfig, store storage.Store) *Agent {
	a := &Agent{
		cfg:          cfg,
		store:        store,
		logger:       log.WithAgent(ID),
		strategies:   make(map[string]*strategyState),
		signals:      make(map[string][]cachedSignal),
		fundamentals: make(map[string]cachedFundamental),
		proposals:    make(map[string]string),
		statuses:     make(map[string]types.TradeStatus),
	}
	a.BaseAgent = agent.New(ID, b, a, agent.Options{
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval(),
	})
	return a
}

// Setup subscribes to analysis and workflow feedback and loads strategies
func (a *Agent) Setup(ctx context.Context) error {
	a.SubscribeTo(
		types.MessageTechnicalSignal,
		types.MessageFundamentalUpdate,
		types.MessageTradeApproval,
		types.MessageTradeRejection,
		types.MessageTradeResult,
	)
	a.loadStrategies()
	return nil
}

// Cleanup persists the final strategy state
func (a *Agent) Cleanup(ctx context.Context) error {
	a.persistAll()
	return nil
}

// loadStrategies restores persisted parameters, falling back to defaults
// for strategies never saved (or whose records were corrupt).
func (a *Agent) loadStrategies() {
	for name := range builtinStrategies {
		record := a.defaultRecord(name)
		if a.store != nil {
			if saved, err := a.store.GetStrategy(name); err == nil && saved != nil {
				record = *saved
			}
		}
		state := &strategyState{record: record}
		state.performance.Strategy = name
		if a.store != nil {
			if perf, err := a.store.GetPerformance(name); err == nil && perf != nil {
				state.performance = *perf
			}
		}
		a.strategies[name] = state
	}
	a.logger.Info().Int("count", len(a.strategies)).Msg("Strategies loaded")
}

func (a *Agent) defaultRecord(name string) storage.StrategyRecord {
	return storage.StrategyRecord{
		Name:                name,
		Enabled:             true,
		MinConfidence:       int(types.ConfidenceHigh),
		DefaultSize:         a.cfg.DefaultSize,
		StopLossPips:        a.cfg.DefaultStopPips,
		TakeProfitPips:      a.cfg.DefaultTakePips,
		TimeLimitSeconds:    a.cfg.DefaultTimeLimitSecs,
		ConfidenceThreshold: 0.6,
		UpdatedAt:           time.Now().UTC(),
	}
}

func (a *Agent) persistAll() {
	if a.store == nil {
		return
	}
	for _, state := range a.strategies {
		record := state.record
		record.UpdatedAt = time.Now().UTC()
		if err := a.store.SaveStrategy(&record); err != nil {
			a.logger.Error().Err(err).Str("strategy", record.Name).Msg("Failed to persist strategy")
		}
		perf := state.performance
		perf.UpdatedAt = time.Now().UTC()
		if err := a.store.SavePerformance(&perf); err != nil {
			a.logger.Error().Err(err).Str("strategy", record.Name).Msg("Failed to persist performance")
		}
	}
}

// HandleMessage dispatches on payload kind
func (a *Agent) HandleMessage(ctx context.Context, msg *types.Message) error {
	switch payload := msg.Payload.(type) {
	case types.TechnicalSignal:
		a.cacheSignal(payload)
	case types.FundamentalUpdate:
		a.cacheFundamental(payload)
	case types.TradeApproval:
		a.noteStatus(payload.Proposal.ID, types.StatusApproved)
	case types.TradeRejection:
		a.noteStatus(payload.ProposalID, types.StatusRejected)
	case types.TradeResult:
		a.applyResult(payload)
	}
	return nil
}

func (a *Agent) cacheSignal(s types.TechnicalSignal) {
	now := time.Now().UTC()
	fresh := a.freshSignals(s.Symbol, now)
	a.signals[s.Symbol] = append(fresh, cachedSignal{signal: s, at: now})
}

// freshSignals filters a symbol's cache down to the freshness window
func (a *Agent) freshSignals(symbol string, now time.Time) []cachedSignal {
	window := time.Duration(a.cfg.SignalFreshnessSecs) * time.Second
	var fresh []cachedSignal
	for _, cached := range a.signals[symbol] {
		if now.Sub(cached.at) < window {
			fresh = append(fresh, cached)
		}
	}
	return fresh
}

func (a *Agent) cacheFundamental(u types.FundamentalUpdate) {
	now := time.Now().UTC()
	for _, currency := range u.ImpactCurrencies {
		a.fundamentals[currency] = cachedFundamental{update: u, at: now}
	}
}

func (a *Agent) noteStatus(proposalID string, status types.TradeStatus) {
	current, tracked := a.statuses[proposalID]
	if !tracked {
		a.logger.Warn().Str("proposal_id", proposalID).Msg("Decision for unknown proposal")
		return
	}
	if types.CanTransition(current, status) {
		a.statuses[proposalID] = status
	}
}

// applyResult updates the owning strategy's performance and tunes it
func (a *Agent) applyResult(r types.TradeResult) {
	name := r.Strategy
	if name == "" {
		name = a.proposals[r.ProposalID]
	}
	state, ok := a.strategies[name]
	if !ok {
		a.logger.Warn().
			Str("execution_id", r.ExecutionID).
			Str("strategy", name).
			Msg("Result for unknown strategy")
		return
	}

	if current, tracked := a.statuses[r.ProposalID]; tracked && types.CanTransition(current, types.StatusClosed) {
		a.statuses[r.ProposalID] = types.StatusClosed
	}

	perf := &state.performance
	perf.Trades++
	perf.NetProfit += r.Profit
	if r.Profit > 0 {
		perf.Wins++
		state.grossWin += r.Profit
		state.losingStreak = 0
		// A winning trade nudges the entry bar down.
		state.record.ConfidenceThreshold = max(0.4, state.record.ConfidenceThreshold-0.01)
	} else {
		perf.Losses++
		state.grossLoss += -r.Profit
		state.losingStreak++
		state.record.ConfidenceThreshold = min(0.9, state.record.ConfidenceThreshold+0.02)
	}
	perf.WinRate = float64(perf.Wins) / float64(perf.Trades)
	if perf.Wins > 0 {
		perf.AvgWin = state.grossWin / float64(perf.Wins)
	}
	if perf.Losses > 0 {
		perf.AvgLoss = state.grossLoss / float64(perf.Losses)
	}
	if state.grossLoss > 0 {
		perf.ProfitFactor = state.grossWin / state.grossLoss
	}

	if state.losingStreak >= a.cfg.LosingStreakLimit && state.record.Enabled {
		state.record.Enabled = false
		a.logger.Warn().
			Str("strategy", name).
			Int("streak", state.losingStreak).
			Msg("Disabling strategy after losing streak")
		a.SendMessage(types.MessageStrategyUpdate, types.StrategyUpdate{
			Strategy:  name,
			Enabled:   false,
			WinRate:   perf.WinRate,
			Detail:    "disabled after losing streak",
			Timestamp: time.Now().UTC(),
		})
	}

	if a.store != nil {
		if err := a.store.SaveResult(&r); err != nil {
			a.logger.Error().Err(err).Msg("Failed to persist trade result")
		}
	}
}

// ProcessCycle evaluates trading opportunities on the configured interval
func (a *Agent) ProcessCycle(ctx context.Context) error {
	now := time.Now().UTC()
	if now.Sub(a.lastUpdate) < a.cfg.UpdateInterval() {
		return nil
	}
	a.lastUpdate = now

	for symbol := range a.signals {
		a.evaluateSymbol(symbol, now)
	}
	a.persistAll()
	return nil
}

// evaluateSymbol checks each enabled strategy against the symbol's fresh
// signals and proposes at most one trade per strategy pass
func (a *Agent) evaluateSymbol(symbol string, now time.Time) {
	fresh := a.freshSignals(symbol, now)
	a.signals[symbol] = fresh
	if len(fresh) == 0 {
		return
	}

	for name, state := range a.strategies {
		if !state.record.Enabled {
			continue
		}
		indicator := builtinStrategies[name]

		direction, confidence, score := consensus(fresh, indicator)
		if direction == types.DirectionNeutral || score < state.record.ConfidenceThreshold {
			continue
		}
		if int(confidence) < state.record.MinConfidence {
			continue
		}
		if a.hasOpenProposal(symbol, name) {
			continue
		}

		alignment := a.fundamentalAlignment(symbol, direction)
		a.propose(symbol, direction, name, confidence, alignment, now)
	}
}

// consensus folds a symbol's fresh signals for one indicator into a single
// direction, the strongest confidence seen, and an agreement score
func consensus(signals []cachedSignal, indicator string) (types.Direction, types.Confidence, float64) {
	votes := 0.0
	total := 0.0
	confidence := types.ConfidenceLow
	for _, cached := range signals {
		s := cached.signal
		if s.Indicator != indicator {
			continue
		}
		total++
		switch s.Direction {
		case types.DirectionLong:
			votes++
		case types.DirectionShort:
			votes--
		}
		if s.Confidence > confidence {
			confidence = s.Confidence
		}
	}
	if total == 0 {
		return types.DirectionNeutral, types.ConfidenceLow, 0
	}

	score := votes / total
	switch {
	case score > 0:
		return types.DirectionLong, confidence, score
	case score < 0:
		return types.DirectionShort, confidence, -score
	default:
		return types.DirectionNeutral, confidence, 0
	}
}

// hasOpenProposal reports whether the strategy already has a live proposal
// on any symbol; the symbol argument is not consulted
func (a *Agent) hasOpenProposal(symbol, strategyName string) bool {
	for proposalID, name := range a.proposals {
		if name != strategyName {
			continue
		}
		if status, ok := a.statuses[proposalID]; ok && !status.IsTerminal() {
			return true
		}
	}
	return false
}

// fundamentalAlignment grades how the cached fundamental view of the base
// currency agrees with the proposed direction
func (a *Agent) fundamentalAlignment(symbol string, direction types.Direction) types.Confidence {
	base := types.BaseCurrency(symbol)
	cached, ok := a.fundamentals[base]
	if !ok {
		return types.ConfidenceMedium
	}
	if cached.update.Impact == direction {
		return cached.update.Confidence
	}
	return types.ConfidenceLow
}

// propose emits one trade proposal and starts tracking its status
func (a *Agent) propose(symbol string, direction types.Direction, strategyName string, tech, fund types.Confidence, now time.Time) {
	state := a.strategies[strategyName]
	proposal := types.TradeProposal{
		ID:               uuid.New().String(),
		Symbol:           symbol,
		Direction:        direction,
		Size:             state.record.DefaultSize,
		StopLossPips:     state.record.StopLossPips,
		TakeProfitPips:   state.record.TakeProfitPips,
		TimeLimitSeconds: state.record.TimeLimitSeconds,
		Strategy:         strategyName,
		TechConfidence:   tech,
		FundAlignment:    fund,
		Status:           types.StatusProposed,
		CreatedAt:        now,
	}

	a.proposals[proposal.ID] = strategyName
	a.statuses[proposal.ID] = types.StatusProposed

	a.logger.Info().
		Str("proposal_id", proposal.ID).
		Str("symbol", symbol).
		Str("direction", string(direction)).
		Str("strategy", strategyName).
		Msg("Proposing trade")

	a.SendMessage(types.MessageTradeProposal, proposal)
}

// Performance returns a strategy's current snapshot. Test hook.
func (a *Agent) Performance(name string) (storage.PerformanceSnapshot, bool) {
	state, ok := a.strategies[name]
	if !ok {
		return storage.PerformanceSnapshot{}, false
	}
	return state.performance, true
}
