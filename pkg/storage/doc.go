/*
Package storage provides persistence for FTBA's learned state.

The storage package keeps strategy parameters, per-strategy performance
snapshots, and closed trade results in an embedded BoltDB database so that
tuning survives restarts. Nothing in the message fabric depends on
storage; only the strategy agent reads and writes it, and the system runs
fine (untuned) if the store is absent.

# Architecture

	┌────────────────────── STORAGE ───────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Store interface                  │          │
	│  │  SaveStrategy / GetStrategy / List...       │          │
	│  │  SavePerformance / GetPerformance / List... │          │
	│  │  SaveResult / ListResults                   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            BoltStore (ftba.db)              │          │
	│  │                                              │          │
	│  │  strategies   name     → StrategyRecord     │          │
	│  │  performance  strategy → PerformanceSnapshot│          │
	│  │  results      exec id  → types.TradeResult  │          │
	│  │                          (all JSON values)  │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Record Semantics

StrategyRecord is the tunable surface of one strategy: enablement,
confidence thresholds, default size/stop/take/time-limit. A
PerformanceSnapshot is the accumulated scoreboard: trades, wins, losses,
win rate, average win/loss, profit factor, net profit. Results are kept
keyed by execution id, which also makes saving one idempotent.

# Corruption Handling

The schemas are not a compatibility contract. A record that fails to
decode is logged, deleted inside the same transaction, and treated as
absent, so callers fall back to their defaults instead of failing startup.
List operations skip undecodable records. The worst outcome of a corrupt
database is an untuned strategy, never a crashed system.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.GetStrategy("ema_crossover")
	if err != nil {
		return err
	}
	if record == nil {
		record = defaultStrategyRecord() // absent or discarded
	}

# Integration Points

  - pkg/agents/strategy: loads records at setup, persists on each
    periodic pass and at cleanup
  - cmd/ftba: opens the store under system.data_dir and owns its Close

# Limitations

Single-writer BoltDB: one process at a time. Results accumulate without
rotation; an operator who cares reclaims space by deleting ftba.db, which
the corruption policy makes safe by construction.
*/
package storage
