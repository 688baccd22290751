// Package integration exercises the cross-agent trade workflow end to end:
// proposal, risk review, execution, close, and result feedback over the real
// broker with the simulated gateway.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semillacaramelo/ftba/pkg/agent"
	"github.com/semillacaramelo/ftba/pkg/agents/execution"
	"github.com/semillacaramelo/ftba/pkg/agents/risk"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/gateway"
	"github.com/semillacaramelo/ftba/pkg/types"
)

func riskConfig() config.RiskConfig {
	return config.RiskConfig{
		AgentConfig:           config.AgentConfig{UpdateIntervalSeconds: 3600, BatchSize: 5, BatchIntervalMs: 20},
		MaxAccountRiskPercent: 2.0,
		MaxPositionPercent:    8.0, // cap = 8000 on the default balance
		MaxDailyLossPercent:   5.0,
		InitialBalance:        100000,
	}
}

func execConfig() config.ExecutionConfig {
	return config.ExecutionConfig{
		AgentConfig:             config.AgentConfig{UpdateIntervalSeconds: 0, BatchSize: 5, BatchIntervalMs: 20},
		MaxHoldMinutes:          240,
		AvailabilityRefreshSecs: 3600,
	}
}

type harness struct {
	broker *broker.Broker
	gw     *gateway.Simulated
	risk   *risk.Agent
	exec   *execution.Agent

	strat *broker.Inbox // stands in for the strategy agent
	obs   *broker.Inbox // observes the whole workflow
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	b := broker.New(broker.Config{CacheTTL: time.Minute})
	gw := gateway.NewSimulated(gateway.SimulatedConfig{FixedSlippagePips: 0})
	require.NoError(t, gw.Connect(context.Background()))
	t.Cleanup(func() { _ = gw.Disconnect() })

	h := &harness{
		broker: b,
		gw:     gw,
		risk:   risk.New(b, riskConfig()),
		exec:   execution.New(b, execConfig(), gw),
	}

	strat, err := b.Register("strat")
	require.NoError(t, err)
	b.Subscribe("strat", types.MessageTradeResult, types.MessageTradeRejection)
	h.strat = strat

	obs, err := b.Register("observer")
	require.NoError(t, err)
	b.Subscribe("observer",
		types.MessageTradeApproval,
		types.MessageTradeRejection,
		types.MessageTradeExecution,
		types.MessageTradeResult,
	)
	h.obs = obs
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.risk.Start(ctx))
	require.NoError(t, h.exec.Start(ctx))
	t.Cleanup(func() {
		h.exec.Stop()
		h.risk.Stop()
	})
}

func proposal(id string, size float64) types.TradeProposal {
	return types.TradeProposal{
		ID:               id,
		Symbol:           "EUR/USD",
		Direction:        types.DirectionLong,
		Size:             size,
		StopLossPips:     50,
		TakeProfitPips:   100,
		TimeLimitSeconds: 3600,
		Strategy:         "ema_crossover",
		Status:           types.StatusProposed,
		CreatedAt:        time.Now().UTC(),
	}
}

// await pops messages until the predicate matches or the deadline passes
func await(t *testing.T, in *broker.Inbox, timeout time.Duration, match func(*types.Message) bool) *types.Message {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msg := in.TryPop(); msg != nil {
			if match(msg) {
				return msg
			}
			continue
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected message never arrived")
	return nil
}

func isKind(kind types.MessageType) func(*types.Message) bool {
	return func(msg *types.Message) bool { return msg.Kind == kind }
}

// TestHappyPath is scenario S1: a proposal flows through approval, a reduced
// fill, a take-profit close, and exactly one result back to strategy and risk.
func TestHappyPath(t *testing.T) {
	h := newHarness(t)
	h.gw.SetPrice("EUR/USD", 1.1000)
	h.start(t)

	h.broker.Publish(&types.Message{
		Kind:    types.MessageTradeProposal,
		Sender:  "strat",
		Payload: proposal("p1", 10000),
	})

	// The observer sees the workflow in status order.
	approvalMsg := await(t, h.obs, 3*time.Second, isKind(types.MessageTradeApproval))
	approval := approvalMsg.Payload.(types.TradeApproval)
	assert.Equal(t, "p1", approval.Proposal.ID)
	assert.Equal(t, 8000.0, approval.Proposal.Size, "risk should cap the size")

	execMsg := await(t, h.obs, 3*time.Second, isKind(types.MessageTradeExecution))
	exec := execMsg.Payload.(types.TradeExecution)
	assert.Equal(t, "p1", exec.ProposalID)
	assert.Equal(t, types.StatusExecuted, exec.Status)
	assert.Equal(t, 8000.0, exec.ExecutedSize)
	assert.InDelta(t, 1.1001, exec.ExecutedPrice, 0.0005)

	// Take profit: 100 pips above entry.
	h.gw.SetPrice("EUR/USD", 1.1110)

	resultMsg := await(t, h.obs, 3*time.Second, isKind(types.MessageTradeResult))
	result := resultMsg.Payload.(types.TradeResult)
	assert.Equal(t, "p1", result.ProposalID)
	assert.Equal(t, types.CloseReasonTake, result.Reason)
	assert.Greater(t, result.ProfitPips, 90.0)

	// Strategy's stand-in receives exactly one result for p1.
	stratResult := await(t, h.strat, 3*time.Second, isKind(types.MessageTradeResult))
	assert.Equal(t, result.ExecutionID, stratResult.Payload.(types.TradeResult).ExecutionID)
	assert.Positive(t, stratResult.Payload.(types.TradeResult).Profit)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, h.strat.Len(), "strategy received more than one result")

	// Risk applied the profit exactly once.
	h.exec.Stop()
	h.risk.Stop()
	assert.Greater(t, h.risk.Balance(), 100000.0)
}

// TestRejection is scenario S2: a proposal past the daily-loss cap is
// rejected and never executes.
func TestRejection(t *testing.T) {
	h := newHarness(t)
	h.gw.SetPrice("EUR/USD", 1.1000)
	h.risk.SetDailyPnL(-4100) // 82% of the 5000 cap consumed
	h.start(t)

	h.broker.Publish(&types.Message{
		Kind:    types.MessageTradeProposal,
		Sender:  "strat",
		Payload: proposal("p2", 1000),
	})

	rejectionMsg := await(t, h.strat, 3*time.Second, isKind(types.MessageTradeRejection))
	rejection := rejectionMsg.Payload.(types.TradeRejection)
	assert.Equal(t, "p2", rejection.ProposalID)
	assert.Equal(t, "daily loss cap", rejection.Reason)

	// No execution ever appears for p2.
	time.Sleep(200 * time.Millisecond)
	for {
		msg := h.obs.TryPop()
		if msg == nil {
			break
		}
		assert.NotEqual(t, types.MessageTradeExecution, msg.Kind, "rejected proposal executed")
	}
}

// TestExpiry is scenario S3: an approval arriving after the proposal's time
// limit is discarded; no executed event and no result follow.
func TestExpiry(t *testing.T) {
	h := newHarness(t)
	h.gw.SetPrice("EUR/USD", 1.1000)
	h.start(t)

	late := proposal("p3", 1000)
	late.TimeLimitSeconds = 1
	late.CreatedAt = time.Now().UTC().Add(-2 * time.Second)
	late.Status = types.StatusApproved

	h.broker.Publish(&types.Message{
		Kind:   types.MessageTradeApproval,
		Sender: "risk_management",
		Payload: types.TradeApproval{
			Proposal:  late,
			Timestamp: time.Now().UTC(),
		},
	})

	execMsg := await(t, h.obs, 3*time.Second, isKind(types.MessageTradeExecution))
	exec := execMsg.Payload.(types.TradeExecution)
	assert.Equal(t, types.StatusExpired, exec.Status)

	time.Sleep(200 * time.Millisecond)
	for {
		msg := h.obs.TryPop()
		if msg == nil {
			break
		}
		assert.NotEqual(t, types.MessageTradeResult, msg.Kind, "expired proposal produced a result")
	}
}

// TestFallbackSymbol is scenario S4: with only USD/CHF available, a EUR/USD
// approval executes on USD/CHF because the pairs share USD.
func TestFallbackSymbol(t *testing.T) {
	h := newHarness(t)
	h.gw.SetPrice("USD/CHF", 0.8800)
	h.start(t)

	h.broker.Publish(&types.Message{
		Kind:   types.MessageSystemStatus,
		Sender: "asset_selection",
		Payload: types.SystemStatus{
			Event:             types.EventAssetAvailabilityUpdate,
			AvailableAssets:   []string{"USD/CHF"},
			RecommendedAssets: []string{"USD/CHF"},
			Timestamp:         time.Now().UTC(),
		},
	})

	// Give the execution agent a beat to cache availability first.
	time.Sleep(100 * time.Millisecond)

	h.broker.Publish(&types.Message{
		Kind:    types.MessageTradeProposal,
		Sender:  "strat",
		Payload: proposal("p4", 1000),
	})

	execMsg := await(t, h.obs, 3*time.Second, isKind(types.MessageTradeExecution))
	exec := execMsg.Payload.(types.TradeExecution)
	assert.Equal(t, types.StatusExecuted, exec.Status)
	assert.Equal(t, "USD/CHF", exec.Symbol)
}

// TestBroadcastSkipsSender is scenario S5: a broadcaster never hears its own
// message; other subscribers hear it once.
func TestBroadcastSkipsSender(t *testing.T) {
	b := broker.New(broker.Config{})

	inboxA, err := b.Register("a")
	require.NoError(t, err)
	inboxB, err := b.Register("b")
	require.NoError(t, err)
	b.Subscribe("a", types.MessageSystemStatus)
	b.Subscribe("b", types.MessageSystemStatus)

	b.Publish(&types.Message{
		Kind:    types.MessageSystemStatus,
		Sender:  "a",
		Payload: types.SystemStatus{Event: "ping"},
	})

	assert.Equal(t, 0, inboxA.Len())
	assert.Equal(t, 1, inboxB.Len())
}

// TestBatchOrdering is scenario S6: a batch of three executions arrives
// contiguously and in order at every subscriber.
func TestBatchOrdering(t *testing.T) {
	b := broker.New(broker.Config{})

	sub1, err := b.Register("sub1")
	require.NoError(t, err)
	sub2, err := b.Register("sub2")
	require.NoError(t, err)
	b.Subscribe("sub1", types.MessageTradeExecution)
	b.Subscribe("sub2", types.MessageTradeExecution)

	sender := agent.New("exec", b, nopHandler{}, agent.Options{BatchSize: 3, BatchInterval: time.Hour})
	require.NoError(t, sender.Start(context.Background()))
	defer sender.Stop()

	for _, id := range []string{"e1", "e2", "e3"} {
		sender.SendMessage(types.MessageTradeExecution, types.TradeExecution{ExecutionID: id})
	}

	for _, sub := range []*broker.Inbox{sub1, sub2} {
		for _, want := range []string{"e1", "e2", "e3"} {
			msg := await(t, sub, time.Second, isKind(types.MessageTradeExecution))
			assert.Equal(t, want, msg.Payload.(types.TradeExecution).ExecutionID)
		}
	}
}

type nopHandler struct{}

func (nopHandler) Setup(ctx context.Context) error                            { return nil }
func (nopHandler) HandleMessage(ctx context.Context, msg *types.Message) error { return nil }
func (nopHandler) ProcessCycle(ctx context.Context) error                     { return nil }
func (nopHandler) Cleanup(ctx context.Context) error                          { return nil }
