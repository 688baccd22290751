/*
Package risk implements the risk management agent.

The agent is the workflow's gatekeeper: every trade proposal passes through
it and leaves as either an approval carrying a risk-adjusted copy of the
trade or a rejection carrying a reason. It also owns the portfolio view of
the system: open positions, daily P&L, volatility and correlation models,
and the circuit breaker that halts trading when the daily-loss cap is
breached.

# Architecture

	┌────────────────── RISK MANAGEMENT AGENT ─────────────────┐
	│                                                            │
	│  Inbox (via pkg/agent loop)                                │
	│  ┌────────────────────────────────────────────┐          │
	│  │  trade_proposal      → evaluateProposal     │          │
	│  │  trade_execution     → trackExecution       │          │
	│  │  trade_result        → applyResult          │          │
	│  │  technical_signal    → absorbSignal         │          │
	│  │  fundamental_update  → absorbFundamental    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Portfolio State                │          │
	│  │  - openPositions (symbol → size/price/dir)  │          │
	│  │  - dailyPnL, accountBalance                 │          │
	│  │  - volatility (symbol → daily %)            │          │
	│  │  - correlation (pair → estimate)            │          │
	│  │  - eventRisk (currency → until)             │          │
	│  │  - statuses (proposal id → status)          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  Outbound batch                                            │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  trade_approval   (adjusted proposal)       │          │
	│  │  trade_rejection  (reason string)           │          │
	│  │  risk_update      (periodic broadcast)      │          │
	│  │  system_status    (RISK_ALERT)              │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Proposal Evaluation

A proposal is scored against five factors, accumulated into a risk score:

 1. Position size over the per-symbol cap (+0.5, and the size is capped).
 2. Symbol volatility (estimate × 0.2).
 3. Correlation with each open position: an aligned direction on a
    correlated pair adds risk, an opposed direction offsets it (±corr × 0.1).
 4. Proximity to a high-impact fundamental event on either currency leg
    (+0.3 per leg while the event window is open).
 5. Daily-loss proximity: once 80% of the daily allowance is burned, every
    proposal is rejected with reason "daily loss cap".

Risk is authoritative on size, stop, and take. The stop never sits closer
than one day's volatility in pips; a missing take defaults to twice the
stop; the size is reduced until the worst-case loss fits the per-trade risk
budget. A score of 1.0 or more rejects; anything else approves with the
adjusted values and a RiskAssessment snapshot attached.

# Position And P&L Tracking

Executions fold into the per-symbol position map: same-direction fills add
at a blended price, opposite-direction fills reduce, flip, or flatten.
Results update daily P&L and the account balance exactly once per execution
id; duplicates are logged and dropped. The daily window rolls at UTC
midnight.

# Circuit Breaker

Breaching the daily-loss cap raises a system_status broadcast with
Alert=RISK_ALERT, both from the periodic portfolio check and immediately
from the result that crossed the line. The execution agent reacts by
canceling its pending trades. Currency over-exposure (beyond twice the
per-trade risk budget) raises the same alert kind with a different detail.

# Periodic Work

Once per configured interval the agent decays bumped volatility estimates
back toward their baselines, rolls the daily window, checks portfolio
thresholds, and broadcasts a risk_update snapshot for observability.

# Integration Points

  - pkg/agents/strategy: sends trade_proposal, consumes the decisions
  - pkg/agents/execution: consumes trade_approval, emits the executions
    and results this agent tracks
  - pkg/agents/technical, pkg/agents/fundamental: signal traffic feeds
    the volatility and event-risk models
  - pkg/metrics: proposal decisions, open positions, balance, daily P&L

# Limitations

Volatility and correlation are seeded from static per-pair baselines and
nudged by message traffic, not recomputed from price history. The models
live in memory only; a restart reverts to the baselines.
*/
package risk
