/*
Package strategy implements the strategy optimization agent.

The agent sits between analysis and risk: it folds technical signals and
fundamental updates into per-symbol views, evaluates its strategies against
them once per interval, and emits trade proposals for high-confidence
opportunities. Results flow back into per-strategy performance and
parameter tuning, and the tuned state persists across restarts.

# Architecture

	┌──────────────── STRATEGY OPTIMIZATION AGENT ─────────────┐
	│                                                            │
	│  Inbox (via pkg/agent loop)                                │
	│  ┌────────────────────────────────────────────┐          │
	│  │  technical_signal    → signal cache         │          │
	│  │  fundamental_update  → fundamental cache    │          │
	│  │  trade_approval      → status tracking      │          │
	│  │  trade_rejection     → status tracking      │          │
	│  │  trade_result        → performance update   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Strategy State                 │          │
	│  │  per strategy:                              │          │
	│  │    - StrategyRecord (parameters, enabled)   │          │
	│  │    - PerformanceSnapshot (win rate, PF)     │          │
	│  │    - losing streak counter                  │          │
	│  │  per symbol: fresh signal window            │          │
	│  │  per proposal: owning strategy + status     │          │
	│  └────────┬──────────────────────┬────────────┘          │
	│           │                      │                        │
	│  ┌────────▼────────┐    ┌───────▼──────────────┐        │
	│  │  Outbound        │    │  pkg/storage         │        │
	│  │  trade_proposal  │    │  save/load records,  │        │
	│  │  strategy_update │    │  snapshots, results  │        │
	│  └─────────────────┘    └──────────────────────┘        │
	└──────────────────────────────────────────────────────────┘

# Opportunity Evaluation

Each strategy is affine to one indicator (EMA Crossover, RSI). Per symbol
and strategy, the fresh signals for that indicator are folded into a
consensus: votes long minus votes short over the total, keeping the
strongest confidence seen. A proposal is raised only when

  - the consensus direction is not neutral,
  - the agreement score clears the strategy's confidence threshold,
  - the strongest confidence clears the strategy's minimum, and
  - no earlier proposal from the strategy is still live (non-terminal).

The proposal carries the strategy's default size, stop, take, and time
limit; risk is authoritative on all of them downstream. Fundamental
alignment is graded from the cached view of the base currency: agreement
inherits the update's confidence, disagreement reads low, no view reads
medium.

# Feedback And Tuning

A result updates the owning strategy's trade count, win rate, average
win/loss, profit factor, and net profit. Wins nudge the confidence
threshold down, losses nudge it up, and a losing streak at the configured
limit disables the strategy and broadcasts a strategy_update. Records,
snapshots, and raw results persist through pkg/storage on every periodic
pass and at cleanup; a fresh agent reloads them and resumes where the old
one stopped.

# Signal Freshness

Signals expire out of the per-symbol cache after the configured freshness
window. An opportunity is only ever computed over fresh signals, so a
quiet symbol stops producing proposals instead of trading on stale
conviction.

# Integration Points

  - pkg/agents/technical, pkg/agents/fundamental: input caches
  - pkg/agents/risk: consumes proposals, returns decisions
  - pkg/agents/execution: results come back from here
  - pkg/storage: StrategyRecord and PerformanceSnapshot persistence

# Limitations

Strategy evaluation is indicator-consensus only; there is no order-book or
spread model. Tuning is bounded nudging of the confidence threshold, not a
parameter search.
*/
package strategy
