package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/agent"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/gateway"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/metrics"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// ID is the execution agent's identity on the broker
const ID = "trade_execution"

// assetSelectionID addresses availability requests
const assetSelectionID = "asset_selection"

// pendingTrade is an approved proposal awaiting a successful placement
type pendingTrade struct {
	proposal   types.TradeProposal
	assessment types.RiskAssessment
}

// activeTrade is an open position being tracked for close conditions
type activeTrade struct {
	execution    types.TradeExecution
	orderID      string
	stopPrice    float64
	takePrice    float64
	holdDeadline time.Time
}

// Agent turns approvals into gateway orders and tracks open positions until
// a stop, take, hold deadline, or shutdown closes them.
type Agent struct {
	*agent.BaseAgent
	cfg     config.ExecutionConfig
	gateway gateway.Gateway
	logger  zerolog.Logger

	pending     map[string]*pendingTrade
	active      map[string]*activeTrade
	statuses    map[string]types.TradeStatus
	resultsSent map[string]bool

	availableAssets   []string
	recommendedAssets []string
	availabilityAt    time.Time

	lastCheck time.Time
}

// New creates the trade execution agent
func New(b *broker.Broker, cfg config.ExecutionConfig, gw gateway.Gateway) *Agent {
	a := &Agent{
		cfg:         cfg,
		gateway:     gw,
		logger:      log.WithAgent(ID),
		pending:     make(map[string]*pendingTrade),
		active:      make(map[string]*activeTrade),
		statuses:    make(map[string]types.TradeStatus),
		resultsSent: make(map[string]bool),
	}
	a.BaseAgent = agent.New(ID, b, a, agent.Options{
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval(),
	})
	return a
}

// Setup subscribes to approvals and system status traffic
func (a *Agent) Setup(ctx context.Context) error {
	a.SubscribeTo(
		types.MessageTradeApproval,
		types.MessageSystemStatus,
	)
	metrics.RegisterComponent("execution", true, "running")
	return nil
}

// Cleanup closes every open position with reason shutdown and cancels any
// trades still pending
func (a *Agent) Cleanup(ctx context.Context) error {
	for proposalID := range a.pending {
		a.cancelPending(proposalID, "agent shutting down")
	}
	for executionID := range a.active {
		a.closeTrade(ctx, executionID, types.CloseReasonShutdown)
	}
	metrics.UpdateComponent("execution", false, "stopped")
	return nil
}

// HandleMessage dispatches on payload kind
func (a *Agent) HandleMessage(ctx context.Context, msg *types.Message) error {
	switch payload := msg.Payload.(type) {
	case types.TradeApproval:
		a.handleApproval(ctx, payload)
	case types.SystemStatus:
		a.handleSystemStatus(payload)
	}
	return nil
}

// handleApproval validates an approval against its deadline and the current
// asset availability, then places the order
func (a *Agent) handleApproval(ctx context.Context, approval types.TradeApproval) {
	p := approval.Proposal

	if _, seen := a.statuses[p.ID]; seen {
		a.logger.Warn().Str("proposal_id", p.ID).Msg("Ignoring duplicate approval")
		return
	}

	now := time.Now().UTC()
	if now.After(p.Deadline()) {
		a.logger.Warn().
			Str("proposal_id", p.ID).
			Time("deadline", p.Deadline()).
			Msg("Discarding approval past its deadline")
		a.statuses[p.ID] = types.StatusExpired
		a.emitExecution(types.TradeExecution{
			ProposalID:    p.ID,
			ExecutionID:   uuid.New().String(),
			Symbol:        p.Symbol,
			Direction:     p.Direction,
			ExecutionTime: now,
			Status:        types.StatusExpired,
			Strategy:      p.Strategy,
			Reason:        "approval arrived after deadline",
		})
		return
	}

	// Substitute an available symbol when the requested one is unavailable.
	symbol, ok := a.resolveSymbol(p.Symbol)
	if !ok {
		a.statuses[p.ID] = types.StatusCanceled
		a.emitExecution(types.TradeExecution{
			ProposalID:    p.ID,
			ExecutionID:   uuid.New().String(),
			Symbol:        p.Symbol,
			Direction:     p.Direction,
			ExecutionTime: now,
			Status:        types.StatusCanceled,
			Strategy:      p.Strategy,
			Reason:        fmt.Sprintf("symbol %s unavailable and no fallback shares a currency", p.Symbol),
		})
		return
	}
	if symbol != p.Symbol {
		a.logger.Info().
			Str("proposal_id", p.ID).
			Str("requested", p.Symbol).
			Str("substitute", symbol).
			Msg("Substituting available symbol")
		p.Symbol = symbol
	}

	a.pending[p.ID] = &pendingTrade{proposal: p, assessment: approval.Assessment}
	a.statuses[p.ID] = types.StatusApproved
	a.placeTrade(ctx, p.ID)
}

// resolveSymbol returns the tradable symbol for a request: the symbol itself
// when available (or no availability is known), otherwise a recommended or
// available fallback sharing a currency leg with the request.
func (a *Agent) resolveSymbol(symbol string) (string, bool) {
	if len(a.availableAssets) == 0 {
		return symbol, true
	}
	if contains(a.availableAssets, symbol) {
		return symbol, true
	}
	for _, candidate := range a.recommendedAssets {
		if types.SharesCurrency(symbol, candidate) {
			return candidate, true
		}
	}
	for _, candidate := range a.availableAssets {
		if types.SharesCurrency(symbol, candidate) {
			return candidate, true
		}
	}
	return "", false
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// placeTrade asks the gateway for a market fill. Refusals cancel the
// proposal; transport errors leave it pending for the next cycle's retry.
func (a *Agent) placeTrade(ctx context.Context, proposalID string) {
	pt, ok := a.pending[proposalID]
	if !ok {
		return
	}
	p := pt.proposal

	result, err := a.gateway.PlaceOrder(ctx, gateway.OrderRequest{
		Symbol:         p.Symbol,
		Direction:      p.Direction,
		Size:           p.Size,
		Type:           gateway.OrderTypeMarket,
		StopLossPips:   p.StopLossPips,
		TakeProfitPips: p.TakeProfitPips,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("proposal_id", proposalID).Msg("Placement failed, will retry")
		return
	}
	if !result.Success {
		a.logger.Warn().
			Str("proposal_id", proposalID).
			Str("error", result.Error).
			Msg("Gateway refused order")
		a.cancelPending(proposalID, result.Error)
		return
	}

	execution := types.TradeExecution{
		ProposalID:     p.ID,
		ExecutionID:    uuid.New().String(),
		Symbol:         p.Symbol,
		Direction:      p.Direction,
		ExecutedSize:   result.ExecutedSize,
		ExecutedPrice:  result.ExecutedPrice,
		ExecutionTime:  time.Now().UTC(),
		Status:         types.StatusExecuted,
		StopLossPips:   p.StopLossPips,
		TakeProfitPips: p.TakeProfitPips,
		Strategy:       p.Strategy,
	}

	pip := types.PipSize(p.Symbol)
	trade := &activeTrade{
		execution:    execution,
		orderID:      result.OrderID,
		holdDeadline: execution.ExecutionTime.Add(time.Duration(a.cfg.MaxHoldMinutes) * time.Minute),
	}
	if p.Direction == types.DirectionLong {
		trade.stopPrice = result.ExecutedPrice - p.StopLossPips*pip
		trade.takePrice = result.ExecutedPrice + p.TakeProfitPips*pip
	} else {
		trade.stopPrice = result.ExecutedPrice + p.StopLossPips*pip
		trade.takePrice = result.ExecutedPrice - p.TakeProfitPips*pip
	}

	delete(a.pending, proposalID)
	a.statuses[proposalID] = types.StatusExecuted
	a.active[execution.ExecutionID] = trade
	metrics.TradesExecuted.WithLabelValues(string(types.StatusExecuted)).Inc()

	tradeLogger := log.WithTrade(a.logger, p.ID, execution.ExecutionID)
	tradeLogger.Info().
		Str("symbol", p.Symbol).
		Float64("size", result.ExecutedSize).
		Float64("price", result.ExecutedPrice).
		Msg("Trade executed")

	a.emitExecution(execution)
}

// cancelPending terminates a pending proposal with a canceled execution event
func (a *Agent) cancelPending(proposalID, reason string) {
	pt, ok := a.pending[proposalID]
	if !ok {
		return
	}
	delete(a.pending, proposalID)
	a.statuses[proposalID] = types.StatusCanceled

	a.emitExecution(types.TradeExecution{
		ProposalID:    proposalID,
		ExecutionID:   uuid.New().String(),
		Symbol:        pt.proposal.Symbol,
		Direction:     pt.proposal.Direction,
		ExecutionTime: time.Now().UTC(),
		Status:        types.StatusCanceled,
		Strategy:      pt.proposal.Strategy,
		Reason:        reason,
	})
}

func (a *Agent) emitExecution(e types.TradeExecution) {
	if e.Status != types.StatusExecuted {
		metrics.TradesExecuted.WithLabelValues(string(e.Status)).Inc()
	}
	a.SendMessage(types.MessageTradeExecution, e)
}

// handleSystemStatus caches availability updates and reacts to risk alerts
func (a *Agent) handleSystemStatus(s types.SystemStatus) {
	switch {
	case s.Event == types.EventAssetAvailabilityUpdate || s.Event == types.EventAssetAvailabilityResponse:
		a.availableAssets = s.AvailableAssets
		a.recommendedAssets = s.RecommendedAssets
		a.availabilityAt = time.Now().UTC()
	case s.Alert == types.AlertRisk && strings.Contains(s.Detail, "threshold breached"):
		a.logger.Warn().Str("detail", s.Detail).Msg("Canceling pending trades on risk alert")
		for proposalID := range a.pending {
			a.cancelPending(proposalID, "risk threshold breached")
		}
	}
}

// ProcessCycle retries and expires pending trades, monitors open positions,
// and refreshes a stale availability cache
func (a *Agent) ProcessCycle(ctx context.Context) error {
	now := time.Now().UTC()
	if now.Sub(a.lastCheck) < a.cfg.UpdateInterval() {
		return nil
	}
	a.lastCheck = now

	a.processPending(ctx, now)
	a.monitorActive(ctx, now)
	a.refreshAvailability(now)
	return nil
}

// processPending expires overdue proposals and retries unfilled placements
func (a *Agent) processPending(ctx context.Context, now time.Time) {
	for proposalID, pt := range a.pending {
		if now.After(pt.proposal.Deadline()) {
			delete(a.pending, proposalID)
			a.statuses[proposalID] = types.StatusExpired
			a.emitExecution(types.TradeExecution{
				ProposalID:    proposalID,
				ExecutionID:   uuid.New().String(),
				Symbol:        pt.proposal.Symbol,
				Direction:     pt.proposal.Direction,
				ExecutionTime: now,
				Status:        types.StatusExpired,
				Strategy:      pt.proposal.Strategy,
				Reason:        "not filled before deadline",
			})
			continue
		}
		a.placeTrade(ctx, proposalID)
	}
}

// monitorActive checks stop, take, and hold deadline for every open
// position. Stop is checked first so a simultaneous trigger closes
// conservatively.
func (a *Agent) monitorActive(ctx context.Context, now time.Time) {
	for executionID, trade := range a.active {
		price, ok := a.gateway.CurrentPrice(trade.execution.Symbol)
		if !ok {
			continue
		}

		long := trade.execution.Direction == types.DirectionLong
		switch {
		case (long && price <= trade.stopPrice) || (!long && price >= trade.stopPrice):
			a.closeTrade(ctx, executionID, types.CloseReasonStop)
		case (long && price >= trade.takePrice) || (!long && price <= trade.takePrice):
			a.closeTrade(ctx, executionID, types.CloseReasonTake)
		case now.After(trade.holdDeadline):
			a.closeTrade(ctx, executionID, types.CloseReasonExpiry)
		}
	}
}

// closeTrade closes a position through the gateway and emits its result.
// At most one result is ever emitted per execution id.
func (a *Agent) closeTrade(ctx context.Context, executionID string, reason types.CloseReason) {
	trade, ok := a.active[executionID]
	if !ok || a.resultsSent[executionID] {
		return
	}
	e := trade.execution

	result, err := a.gateway.CloseOrder(ctx, e.Symbol, trade.orderID, e.ExecutedSize)
	if err != nil {
		a.logger.Error().Err(err).Str("execution_id", executionID).Msg("Close failed, will retry")
		return
	}
	if !result.Success {
		a.logger.Error().
			Str("execution_id", executionID).
			Str("error", result.Error).
			Msg("Gateway refused close")
		return
	}

	exitPrice := result.ExecutedPrice
	dirMult := 1.0
	if e.Direction == types.DirectionShort {
		dirMult = -1.0
	}
	pip := types.PipSize(e.Symbol)
	profitPips := (exitPrice - e.ExecutedPrice) * dirMult / pip
	profit := (exitPrice - e.ExecutedPrice) * dirMult * e.ExecutedSize

	delete(a.active, executionID)
	a.resultsSent[executionID] = true
	if current, ok := a.statuses[e.ProposalID]; ok && types.CanTransition(current, types.StatusClosed) {
		a.statuses[e.ProposalID] = types.StatusClosed
	}
	metrics.TradesClosed.WithLabelValues(string(reason)).Inc()

	closeLogger := log.WithTrade(a.logger, e.ProposalID, executionID)
	closeLogger.Info().
		Str("symbol", e.Symbol).
		Str("reason", string(reason)).
		Float64("profit_pips", profitPips).
		Msg("Trade closed")

	a.SendMessage(types.MessageTradeResult, types.TradeResult{
		ExecutionID: executionID,
		ProposalID:  e.ProposalID,
		Symbol:      e.Symbol,
		Direction:   e.Direction,
		EntryPrice:  e.ExecutedPrice,
		ExitPrice:   exitPrice,
		Size:        e.ExecutedSize,
		EntryTime:   e.ExecutionTime,
		ExitTime:    time.Now().UTC(),
		Profit:      profit,
		ProfitPips:  profitPips,
		Reason:      reason,
		Strategy:    e.Strategy,
	})
}

// refreshAvailability requests a fresh asset list when the cache is stale
func (a *Agent) refreshAvailability(now time.Time) {
	refresh := time.Duration(a.cfg.AvailabilityRefreshSecs) * time.Second
	if refresh <= 0 || now.Sub(a.availabilityAt) < refresh {
		return
	}
	a.availabilityAt = now
	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{
		Event:     types.EventAssetAvailabilityRequest,
		Timestamp: now,
	}, assetSelectionID)
}
