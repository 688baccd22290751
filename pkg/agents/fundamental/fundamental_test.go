package fundamental

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/types"
)

func testConfig() config.FundamentalConfig {
	return config.FundamentalConfig{
		AgentConfig:      config.AgentConfig{UpdateIntervalSeconds: 1, BatchSize: 100, BatchIntervalMs: 10},
		EventWarningMins: 30,
	}
}

func newTestAgent(t *testing.T) (*Agent, *broker.Inbox) {
	t.Helper()
	b := broker.New(broker.Config{})
	a := New(b, testConfig())
	a.startedAt = time.Now().UTC()

	sink, err := b.Register("sink")
	require.NoError(t, err)
	b.Subscribe("sink", types.MessageFundamentalUpdate)
	return a, sink
}

func collect(t *testing.T, in *broker.Inbox, n int) []*types.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var msgs []*types.Message
	for time.Now().Before(deadline) && len(msgs) < n {
		if msg := in.TryPop(); msg != nil {
			msgs = append(msgs, msg)
			continue
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, msgs, n, "expected %d messages", n)
	return msgs
}

func TestUpcomingEventWarning(t *testing.T) {
	a, sink := newTestAgent(t)

	// One event due in 10 minutes: inside the 30-minute warning window.
	a.calendar = []*calendarEvent{
		{currency: "EUR", name: "ECB Rate Decision", forecast: 4.0, impact: types.ConfidenceVeryHigh, offset: 10 * time.Minute},
	}

	require.NoError(t, a.ProcessCycle(context.Background()))

	msgs := collect(t, sink, 1)
	update := msgs[0].Payload.(types.FundamentalUpdate)
	assert.Equal(t, "Upcoming Event: ECB Rate Decision", update.Event)
	assert.Equal(t, []string{"EUR"}, update.ImpactCurrencies)
	assert.Equal(t, types.DirectionNeutral, update.Impact)
	assert.Nil(t, update.Actual)
	assert.True(t, a.calendar[0].warned)
}

func TestWarningSentOnce(t *testing.T) {
	a, sink := newTestAgent(t)
	a.calendar = []*calendarEvent{
		{currency: "EUR", name: "ECB Rate Decision", forecast: 4.0, impact: types.ConfidenceVeryHigh, offset: 10 * time.Minute},
	}

	require.NoError(t, a.ProcessCycle(context.Background()))
	a.lastUpdate = time.Time{}
	require.NoError(t, a.ProcessCycle(context.Background()))

	collect(t, sink, 1)
	assert.Equal(t, 0, sink.Len(), "warning broadcast twice")
}

func TestDueEventReleased(t *testing.T) {
	a, sink := newTestAgent(t)

	// An event already past its release time with a positive surprise.
	a.calendar = []*calendarEvent{
		{currency: "USD", name: "Non-Farm Payrolls", forecast: 180, previous: 175, surprise: 20, impact: types.ConfidenceVeryHigh, offset: -time.Minute},
	}

	require.NoError(t, a.ProcessCycle(context.Background()))

	msgs := collect(t, sink, 1)
	update := msgs[0].Payload.(types.FundamentalUpdate)
	assert.Equal(t, "Non-Farm Payrolls", update.Event)
	require.NotNil(t, update.Actual)
	assert.Equal(t, 200.0, *update.Actual)
	assert.Equal(t, types.DirectionLong, update.Impact)
	assert.True(t, a.calendar[0].released)
	assert.Equal(t, types.DirectionLong, a.assessed["USD"])
}

func TestNegativeSurpriseReadsShort(t *testing.T) {
	a, sink := newTestAgent(t)
	a.calendar = []*calendarEvent{
		{currency: "GBP", name: "CPI YoY", forecast: 3.2, surprise: -0.3, impact: types.ConfidenceHigh, offset: -time.Minute},
	}

	require.NoError(t, a.ProcessCycle(context.Background()))

	msgs := collect(t, sink, 1)
	update := msgs[0].Payload.(types.FundamentalUpdate)
	assert.Equal(t, types.DirectionShort, update.Impact)
}

func TestResultTally(t *testing.T) {
	a, _ := newTestAgent(t)
	a.assessed["EUR"] = types.DirectionLong

	// Profitable long on a EUR pair matches the assessment.
	err := a.HandleMessage(context.Background(), &types.Message{
		Kind:   types.MessageTradeResult,
		Sender: "trade_execution",
		Payload: types.TradeResult{
			ExecutionID: "e1",
			Symbol:      "EUR/USD",
			Direction:   types.DirectionLong,
			Profit:      120,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, a.results)
	assert.Equal(t, 1, a.resultsOK)

	// A losing long against a long assessment counts as misaligned.
	err = a.HandleMessage(context.Background(), &types.Message{
		Kind:   types.MessageTradeResult,
		Sender: "trade_execution",
		Payload: types.TradeResult{
			ExecutionID: "e2",
			Symbol:      "EUR/USD",
			Direction:   types.DirectionLong,
			Profit:      -60,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, a.results)
	assert.Equal(t, 1, a.resultsOK)
}
