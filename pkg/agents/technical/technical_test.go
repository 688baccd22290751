package technical

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

func testConfig() config.TechnicalConfig {
	return config.TechnicalConfig{
		AgentConfig:     config.AgentConfig{UpdateIntervalSeconds: 60, BatchSize: 100, BatchIntervalMs: 10},
		SignalThreshold: 0.5,
		MaxHistory:      100,
	}
}

func TestEMA(t *testing.T) {
	prices := []float64{1, 1, 1, 1, 1}
	out := ema(prices, 3)
	require.Len(t, out, 5)
	for _, v := range out {
		assert.InDelta(t, 1.0, v, 1e-9)
	}

	// A rising series keeps the EMA below the last price.
	rising := []float64{1, 2, 3, 4, 5}
	out = ema(rising, 3)
	assert.Less(t, out[4], 5.0)
	assert.Greater(t, out[4], out[3])
}

func TestRSIExtremes(t *testing.T) {
	// Monotonic gains push RSI to 100.
	up := make([]float64, 20)
	for i := range up {
		up[i] = 1.0 + float64(i)*0.001
	}
	value, ok := rsi(up, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, value)

	// Monotonic losses push RSI to 0.
	down := make([]float64, 20)
	for i := range down {
		down[i] = 2.0 - float64(i)*0.001
	}
	value, ok = rsi(down, 14)
	require.True(t, ok)
	assert.InDelta(t, 0.0, value, 1e-9)

	_, ok = rsi(down[:10], 14)
	assert.False(t, ok, "rsi with insufficient history")
}

func TestCrossoverSignal(t *testing.T) {
	now := time.Now().UTC()

	// Fast EMA crossing above the slow one fires long.
	fast := []float64{1.0999, 1.1003}
	slow := []float64{1.1000, 1.1001}
	signal, ok := crossoverSignal("EUR/USD", fast, slow, now)
	require.True(t, ok)
	assert.Equal(t, types.DirectionLong, signal.Direction)
	assert.Equal(t, "EMA Crossover", signal.Indicator)

	// Crossing below fires short.
	signal, ok = crossoverSignal("EUR/USD", slow, fast, now)
	require.True(t, ok)
	assert.Equal(t, types.DirectionShort, signal.Direction)

	// No cross, no signal.
	_, ok = crossoverSignal("EUR/USD", []float64{1.2, 1.2}, []float64{1.1, 1.1}, now)
	assert.False(t, ok)
}

func TestRSISignalDirections(t *testing.T) {
	now := time.Now().UTC()

	down := make([]float64, 20)
	for i := range down {
		down[i] = 2.0 - float64(i)*0.001
	}
	signal, ok := rsiSignal("EUR/USD", down, 14, now)
	require.True(t, ok)
	assert.Equal(t, types.DirectionLong, signal.Direction, "oversold should read long")

	up := make([]float64, 20)
	for i := range up {
		up[i] = 1.0 + float64(i)*0.001
	}
	signal, ok = rsiSignal("EUR/USD", up, 14, now)
	require.True(t, ok)
	assert.Equal(t, types.DirectionShort, signal.Direction, "overbought should read short")
}

func TestHistoryBounded(t *testing.T) {
	b := broker.New(broker.Config{})
	a := New(b, testConfig(), nil)

	for i := 0; i < 250; i++ {
		a.appendPrice("EUR/USD", 1.1)
	}
	assert.Len(t, a.history["EUR/USD"], 100)
}

func TestMarketDataFeedsHistory(t *testing.T) {
	b := broker.New(broker.Config{})
	a := New(b, testConfig(), nil)

	err := a.HandleMessage(context.Background(), &types.Message{
		Kind:   types.MessageMarketData,
		Sender: "feed",
		Payload: types.MarketData{
			Symbol: "EUR/USD",
			Bid:    1.0999,
			Ask:    1.1001,
		},
	})
	require.NoError(t, err)

	require.Len(t, a.history["EUR/USD"], 1)
	assert.InDelta(t, 1.1, a.history["EUR/USD"][0], 1e-9)
}

func TestAvailabilityUpdatesWatchList(t *testing.T) {
	b := broker.New(broker.Config{})
	a := New(b, testConfig(), nil)

	err := a.HandleMessage(context.Background(), &types.Message{
		Kind:   types.MessageSystemStatus,
		Sender: "asset_selection",
		Payload: types.SystemStatus{
			Event:             types.EventAssetAvailabilityUpdate,
			RecommendedAssets: []string{"EUR/USD", "GBP/USD"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR/USD", "GBP/USD"}, a.watched)
}

func TestConfidenceFromStrength(t *testing.T) {
	assert.Equal(t, types.ConfidenceVeryHigh, confidenceFromStrength(0.95))
	assert.Equal(t, types.ConfidenceHigh, confidenceFromStrength(0.7))
	assert.Equal(t, types.ConfidenceMedium, confidenceFromStrength(0.4))
	assert.Equal(t, types.ConfidenceLow, confidenceFromStrength(0.1))
}
