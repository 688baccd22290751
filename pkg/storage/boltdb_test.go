package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/semillacaramelo/ftba/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStrategyRoundTrip(t *testing.T) {
	store := newTestStore(t)

	record := &StrategyRecord{
		Name:             "ema_crossover",
		Enabled:          true,
		DefaultSize:      10000,
		StopLossPips:     50,
		TakeProfitPips:   100,
		TimeLimitSeconds: 3600,
		UpdatedAt:        time.Now().UTC(),
	}
	require.NoError(t, store.SaveStrategy(record))

	got, err := store.GetStrategy("ema_crossover")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Name, got.Name)
	assert.Equal(t, record.StopLossPips, got.StopLossPips)
}

func TestGetStrategyMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetStrategy("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCorruptStrategyDiscarded(t *testing.T) {
	store := newTestStore(t)

	// Plant a record that cannot decode.
	err := store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStrategies).Put([]byte("broken"), []byte("{not json"))
	})
	require.NoError(t, err)

	got, err := store.GetStrategy("broken")
	require.NoError(t, err)
	assert.Nil(t, got, "corrupt record should read as absent")

	// The record is gone for good, not just skipped.
	err = store.db.View(func(tx *bolt.Tx) error {
		assert.Nil(t, tx.Bucket(bucketStrategies).Get([]byte("broken")))
		return nil
	})
	require.NoError(t, err)
}

func TestPerformanceRoundTrip(t *testing.T) {
	store := newTestStore(t)

	snapshot := &PerformanceSnapshot{
		Strategy:     "rsi_reversal",
		Trades:       10,
		Wins:         6,
		Losses:       4,
		WinRate:      0.6,
		ProfitFactor: 1.8,
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.SavePerformance(snapshot))

	got, err := store.GetPerformance("rsi_reversal")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.6, got.WinRate)

	all, err := store.ListPerformance()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResultsAppend(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, store.SaveResult(&types.TradeResult{
			ExecutionID: id,
			Symbol:      "EUR/USD",
			Direction:   types.DirectionLong,
			ProfitPips:  25,
			Reason:      types.CloseReasonTake,
		}))
	}

	results, err := store.ListResults()
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
