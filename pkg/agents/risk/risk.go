package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/agent"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/metrics"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// ID is the risk agent's identity on the broker
const ID = "risk_management"

// position tracks one open position by symbol
type position struct {
	size      float64
	price     float64
	direction types.Direction
}

// Agent evaluates trade proposals against portfolio limits and tracks open
// exposure, daily P&L, and market risk models.
type Agent struct {
	*agent.BaseAgent
	cfg    config.RiskConfig
	logger zerolog.Logger

	accountBalance float64
	dailyPnL       float64
	dayStart       time.Time

	openPositions map[string]*position
	statuses      map[string]types.TradeStatus
	seenResults   map[string]bool
	volatility    map[string]float64 // symbol -> typical daily % volatility
	correlation   map[string]float64 // "A_B" -> correlation estimate
	eventRisk     map[string]time.Time

	lastUpdate time.Time
}

// baseline daily volatility per major pair, in percent
var baselineVolatility = map[string]float64{
	"EUR/USD": 0.5,
	"GBP/USD": 0.7,
	"USD/JPY": 0.6,
	"USD/CHF": 0.6,
	"AUD/USD": 0.8,
	"NZD/USD": 0.9,
	"USD/CAD": 0.6,
	"EUR/GBP": 0.5,
}

// New creates the risk management agent
func New(b *broker.Broker, cfg config.RiskConfig) *Agent {
	a := &Agent{
		cfg:            cfg,
		logger:         log.WithAgent(ID),
		accountBalance: cfg.InitialBalance,
		dayStart:       time.Now().UTC().Truncate(24 * time.Hour),
		openPositions:  make(map[string]*position),
		statuses:       make(map[string]types.TradeStatus),
		seenResults:    make(map[string]bool),
		volatility:     make(map[string]float64),
		correlation:    make(map[string]float64),
		eventRisk:      make(map[string]time.Time),
	}
	a.BaseAgent = agent.New(ID, b, a, agent.Options{
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval(),
	})
	return a
}

// Setup subscribes to workflow and analysis traffic and seeds the risk models
func (a *Agent) Setup(ctx context.Context) error {
	a.SubscribeTo(
		types.MessageTradeProposal,
		types.MessageTradeExecution,
		types.MessageTradeResult,
		types.MessageTechnicalSignal,
		types.MessageFundamentalUpdate,
	)
	a.initRiskModels()
	metrics.AccountBalance.Set(a.accountBalance)
	return nil
}

// Cleanup clears position tracking
func (a *Agent) Cleanup(ctx context.Context) error {
	a.openPositions = make(map[string]*position)
	return nil
}

// initRiskModels seeds volatility and correlation estimates for the majors
func (a *Agent) initRiskModels() {
	for symbol, vol := range baselineVolatility {
		a.volatility[symbol] = vol
	}
	for s1 := range baselineVolatility {
		for s2 := range baselineVolatility {
			key := s1 + "_" + s2
			switch {
			case s1 == s2:
				a.correlation[key] = 1.0
			case types.BaseCurrency(s1) == types.BaseCurrency(s2):
				a.correlation[key] = 0.8
			case types.SharesCurrency(s1, s2):
				a.correlation[key] = 0.6
			default:
				a.correlation[key] = 0.0
			}
		}
	}
}

// ProcessCycle refreshes risk models on the configured interval and checks
// portfolio-level thresholds
func (a *Agent) ProcessCycle(ctx context.Context) error {
	now := time.Now().UTC()
	if now.Sub(a.lastUpdate) < a.cfg.UpdateInterval() {
		return nil
	}
	a.lastUpdate = now

	a.decayVolatility()
	a.rollDailyWindow(now)
	a.checkPortfolioRisk()
	a.broadcastRiskUpdate(now)
	return nil
}

// decayVolatility relaxes bumped estimates back toward their baselines
func (a *Agent) decayVolatility() {
	for symbol, vol := range a.volatility {
		base, ok := baselineVolatility[symbol]
		if !ok {
			base = 0.7
		}
		a.volatility[symbol] = vol + (base-vol)*0.1
	}
}

// rollDailyWindow resets the daily P&L at UTC midnight
func (a *Agent) rollDailyWindow(now time.Time) {
	day := now.Truncate(24 * time.Hour)
	if day.After(a.dayStart) {
		a.logger.Info().Float64("daily_pnl", a.dailyPnL).Msg("Rolling daily loss window")
		a.dayStart = day
		a.dailyPnL = 0
		metrics.DailyPnL.Set(0)
	}
}

// checkPortfolioRisk raises alerts on currency over-exposure and breach of
// the daily-loss cap
func (a *Agent) checkPortfolioRisk() {
	exposure := a.currencyExposure()
	maxExposure := a.accountBalance * a.maxAccountRisk() * 2
	for currency, amount := range exposure {
		if amount > maxExposure || amount < -maxExposure {
			a.sendRiskAlert(fmt.Sprintf("over-exposed to %s: %.2f", currency, amount))
		}
	}

	if a.dailyPnL < -a.accountBalance*a.maxDailyLoss() {
		a.sendRiskAlert(fmt.Sprintf("daily loss threshold breached: %.2f", a.dailyPnL))
	}
}

// currencyExposure sums signed exposure per currency leg across open positions
func (a *Agent) currencyExposure() map[string]float64 {
	exposure := make(map[string]float64)
	for symbol, pos := range a.openPositions {
		signed := pos.size
		if pos.direction == types.DirectionShort {
			signed = -signed
		}
		if base := types.BaseCurrency(symbol); base != "" {
			exposure[base] += signed
			exposure[types.QuoteCurrency(symbol)] -= signed
		}
	}
	return exposure
}

func (a *Agent) broadcastRiskUpdate(now time.Time) {
	a.SendMessage(types.MessageRiskUpdate, types.RiskUpdate{
		AccountBalance: a.accountBalance,
		DailyPnL:       a.dailyPnL,
		Exposure:       a.currencyExposure(),
		OpenPositions:  len(a.openPositions),
		Timestamp:      now,
	})
}

func (a *Agent) sendRiskAlert(detail string) {
	a.logger.Warn().Str("detail", detail).Msg("Risk alert")
	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{
		Alert:     types.AlertRisk,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

// HandleMessage dispatches on payload kind
func (a *Agent) HandleMessage(ctx context.Context, msg *types.Message) error {
	switch payload := msg.Payload.(type) {
	case types.TradeProposal:
		a.evaluateProposal(payload)
	case types.TradeExecution:
		a.trackExecution(payload)
	case types.TradeResult:
		a.applyResult(payload)
	case types.TechnicalSignal:
		a.absorbSignal(payload)
	case types.FundamentalUpdate:
		a.absorbFundamental(payload)
	}
	return nil
}

func (a *Agent) maxAccountRisk() float64 { return a.cfg.MaxAccountRiskPercent / 100 }
func (a *Agent) maxPosition() float64    { return a.cfg.MaxPositionPercent / 100 }
func (a *Agent) maxDailyLoss() float64   { return a.cfg.MaxDailyLossPercent / 100 }

// evaluateProposal scores a proposal and answers with an approval carrying
// the adjusted trade, or a rejection carrying the reason
func (a *Agent) evaluateProposal(p types.TradeProposal) {
	if _, seen := a.statuses[p.ID]; seen {
		a.logger.Warn().Str("proposal_id", p.ID).Msg("Ignoring duplicate proposal id")
		return
	}

	riskScore := 0.0
	size := p.Size

	// Position size cap.
	maxPositionSize := a.accountBalance * a.maxPosition()
	if size > maxPositionSize {
		riskScore += 0.5
		size = maxPositionSize
	}

	// Symbol volatility.
	vol, ok := a.volatility[p.Symbol]
	if !ok {
		vol = 1.0
	}
	riskScore += vol * 0.2

	// Correlation with open positions: aligned direction on a correlated
	// pair concentrates risk, opposed direction offsets it.
	for openSymbol, pos := range a.openPositions {
		corr := a.correlation[p.Symbol+"_"+openSymbol]
		if pos.direction == p.Direction {
			riskScore += corr * 0.1
		} else {
			riskScore -= corr * 0.1
		}
	}

	// Proximity to a high-impact fundamental event on either leg.
	now := time.Now().UTC()
	for _, currency := range []string{types.BaseCurrency(p.Symbol), types.QuoteCurrency(p.Symbol)} {
		if at, ok := a.eventRisk[currency]; ok && at.After(now) {
			riskScore += 0.3
		}
	}

	// Risk is authoritative on stop and take. The stop never sits closer
	// than one day's volatility; missing values get the volatility-scaled
	// defaults.
	stop := p.StopLossPips
	minStop := vol * 100
	if stop < minStop {
		stop = minStop
	}
	take := p.TakeProfitPips
	if take <= 0 {
		take = stop * 2
	}

	// Size down until the worst-case loss fits the per-trade risk budget.
	maxRisk := a.accountBalance * a.maxAccountRisk()
	potentialLoss := size * stop * types.PipSize(p.Symbol)
	if potentialLoss > maxRisk {
		size = maxRisk / (stop * types.PipSize(p.Symbol))
	}

	dailyLossFloor := -a.accountBalance * a.maxDailyLoss()
	assessment := types.RiskAssessment{
		Symbol:          p.Symbol,
		MaxPositionSize: maxPositionSize,
		StopLossPips:    stop,
		TakeProfitPips:  take,
		MaxDailyLoss:    -dailyLossFloor,
		Exposure:        a.currencyExposure(),
		Volatility:      vol,
	}

	switch {
	case a.dailyPnL <= dailyLossFloor*0.8:
		a.reject(p, "daily loss cap", riskScore)
	case riskScore >= 1.0:
		a.reject(p, fmt.Sprintf("risk score %.2f exceeds limit", riskScore), riskScore)
	default:
		adjusted := p
		adjusted.Size = size
		adjusted.StopLossPips = stop
		adjusted.TakeProfitPips = take
		adjusted.RiskScore = riskScore
		adjusted.Status = types.StatusApproved

		a.statuses[p.ID] = types.StatusApproved
		metrics.ProposalsTotal.WithLabelValues("approved").Inc()
		a.logger.Info().
			Str("proposal_id", p.ID).
			Str("symbol", p.Symbol).
			Float64("size", size).
			Float64("risk_score", riskScore).
			Msg("Proposal approved")

		a.SendMessage(types.MessageTradeApproval, types.TradeApproval{
			Proposal:   adjusted,
			Assessment: assessment,
			Timestamp:  time.Now().UTC(),
		})
	}
}

func (a *Agent) reject(p types.TradeProposal, reason string, riskScore float64) {
	a.statuses[p.ID] = types.StatusRejected
	metrics.ProposalsTotal.WithLabelValues("rejected").Inc()
	a.logger.Info().
		Str("proposal_id", p.ID).
		Str("symbol", p.Symbol).
		Str("reason", reason).
		Msg("Proposal rejected")

	a.SendMessage(types.MessageTradeRejection, types.TradeRejection{
		ProposalID: p.ID,
		Symbol:     p.Symbol,
		Reason:     reason,
		RiskScore:  riskScore,
		Timestamp:  time.Now().UTC(),
	})
}

// trackExecution folds an execution into position tracking
func (a *Agent) trackExecution(e types.TradeExecution) {
	if current, ok := a.statuses[e.ProposalID]; ok && types.CanTransition(current, e.Status) {
		a.statuses[e.ProposalID] = e.Status
	}
	if e.Status != types.StatusExecuted {
		return
	}

	pos, exists := a.openPositions[e.Symbol]
	if !exists {
		a.openPositions[e.Symbol] = &position{
			size:      e.ExecutedSize,
			price:     e.ExecutedPrice,
			direction: e.Direction,
		}
		metrics.OpenPositions.Set(float64(len(a.openPositions)))
		return
	}

	if pos.direction == e.Direction {
		// Same direction adds to the position at a blended price.
		total := pos.size + e.ExecutedSize
		pos.price = (pos.price*pos.size + e.ExecutedPrice*e.ExecutedSize) / total
		pos.size = total
		return
	}

	// Opposite direction reduces, flips, or flattens.
	remaining := pos.size - e.ExecutedSize
	switch {
	case remaining > 0:
		pos.size = remaining
	case remaining < 0:
		a.openPositions[e.Symbol] = &position{
			size:      -remaining,
			price:     e.ExecutedPrice,
			direction: e.Direction,
		}
	default:
		delete(a.openPositions, e.Symbol)
	}
	metrics.OpenPositions.Set(float64(len(a.openPositions)))
}

// applyResult folds a closed trade into P&L and releases its position
func (a *Agent) applyResult(r types.TradeResult) {
	if a.seenResults[r.ExecutionID] {
		a.logger.Warn().Str("execution_id", r.ExecutionID).Msg("Ignoring duplicate trade result")
		return
	}
	a.seenResults[r.ExecutionID] = true

	a.dailyPnL += r.Profit
	a.accountBalance += r.Profit
	metrics.DailyPnL.Set(a.dailyPnL)
	metrics.AccountBalance.Set(a.accountBalance)

	if current, ok := a.statuses[r.ProposalID]; ok && types.CanTransition(current, types.StatusClosed) {
		a.statuses[r.ProposalID] = types.StatusClosed
	}
	delete(a.openPositions, r.Symbol)
	metrics.OpenPositions.Set(float64(len(a.openPositions)))

	a.logger.Info().
		Str("execution_id", r.ExecutionID).
		Str("symbol", r.Symbol).
		Float64("profit", r.Profit).
		Msg("Position closed")

	// Breaching the cap mid-day triggers the circuit breaker immediately
	// rather than waiting for the next periodic pass.
	if a.dailyPnL < -a.accountBalance*a.maxDailyLoss() {
		a.sendRiskAlert(fmt.Sprintf("daily loss threshold breached: %.2f", a.dailyPnL))
	}
}

// absorbSignal bumps volatility for symbols showing strong conviction
func (a *Agent) absorbSignal(s types.TechnicalSignal) {
	if s.Confidence < types.ConfidenceHigh {
		return
	}
	if vol, ok := a.volatility[s.Symbol]; ok {
		a.volatility[s.Symbol] = vol * 1.05
	}
}

// absorbFundamental marks event risk for the affected currencies
func (a *Agent) absorbFundamental(u types.FundamentalUpdate) {
	if u.Confidence < types.ConfidenceHigh {
		return
	}
	until := u.Timestamp.Add(time.Hour)
	for _, currency := range u.ImpactCurrencies {
		a.eventRisk[currency] = until
		for symbol := range a.volatility {
			if types.BaseCurrency(symbol) == currency || types.QuoteCurrency(symbol) == currency {
				a.volatility[symbol] *= 1.2
			}
		}
	}
}

// Balance returns the current account balance. Test hook.
func (a *Agent) Balance() float64 { return a.accountBalance }

// SetDailyPnL pins the daily P&L. Test hook for loss-cap scenarios.
func (a *Agent) SetDailyPnL(v float64) { a.dailyPnL = v }
