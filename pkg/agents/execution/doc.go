/*
Package execution implements the trade execution agent.

The agent is the only component that talks to the gateway. Approvals become
market orders, open positions are tracked tick by tick, and every close
(stop, take, hold deadline, or shutdown) produces exactly one trade result.
Everything upstream of it deals in intentions; this agent deals in fills.

# Architecture

	┌────────────────── TRADE EXECUTION AGENT ─────────────────┐
	│                                                            │
	│  Inbox (via pkg/agent loop)                                │
	│  ┌────────────────────────────────────────────┐          │
	│  │  trade_approval  → deadline check           │          │
	│  │                  → symbol substitution      │          │
	│  │                  → placeTrade               │          │
	│  │  system_status   → availability cache       │          │
	│  │                  → RISK_ALERT cancellation  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Trade State                    │          │
	│  │  pending  (proposal id → awaiting fill)     │          │
	│  │  active   (execution id → open position)    │          │
	│  │  statuses (proposal id → status)            │          │
	│  │  resultsSent (execution id → bool)          │          │
	│  └────────┬──────────────────────┬────────────┘          │
	│           │                      │                        │
	│  ┌────────▼────────┐    ┌───────▼──────────────┐        │
	│  │  Gateway         │    │  Process Cycle       │        │
	│  │  - PlaceOrder    │    │  - expire pending    │        │
	│  │  - CurrentPrice  │    │  - retry placements  │        │
	│  │  - CloseOrder    │    │  - monitor actives   │        │
	│  └─────────────────┘    │  - refresh assets    │        │
	│                          └──────────────────────┘        │
	└──────────────────────────────────────────────────────────┘

# Approval Flow

 1. Duplicate proposal ids are dropped with a warning; the first decision
    for an id is the only one that counts.
 2. An approval arriving after the proposal's time limit is discarded with
    a log and a trade_execution event with status expired. No order is
    placed and no result can ever follow.
 3. If the requested symbol is missing from the cached availability set,
    a recommended (then available) symbol sharing a currency leg is
    substituted; with no such fallback the proposal is canceled.
 4. The gateway places a market order. A refusal (Success=false) cancels
    the proposal with the gateway's reason. A transport error leaves the
    trade pending; each process cycle retries it until the deadline
    expires it.
 5. A fill, full or partial, is recorded as-is with status executed and
    broadcast. Partial remainders are never retried.

# Position Monitoring

Each cycle reads the current price of every open position and checks, in
this fixed order: stop loss, take profit, hold deadline. Stop before take
means a price that somehow satisfies both closes conservatively. A close
goes through the gateway; only a confirmed close emits the trade_result,
and the resultsSent set guarantees at most one result per execution id
even across retries.

Profit is accounted in quote-currency terms ((exit-entry) × direction ×
size) with pips derived from the per-symbol pip size.

# Asset Availability

The agent caches the most recent asset_availability_update broadcast. When
the cache is older than the configured refresh interval, it sends an
asset_availability_request addressed to the asset selection agent, which
answers with a response to this agent only.

# Shutdown And Alerts

Cleanup cancels every pending trade and closes every open position with
reason shutdown, so stopping the system cannot strand a position. A
RISK_ALERT system_status whose detail reports a breached threshold cancels
all pending trades immediately.

# Integration Points

  - pkg/gateway: all order placement, quoting, and closing
  - pkg/agents/risk: source of approvals, consumer of executions/results
  - pkg/agents/strategy: consumer of results for performance feedback
  - pkg/agents/assetselection: availability broadcasts and responses
  - pkg/metrics: executions by status, closes by reason, gateway counters

# Limitations

Orders are market-only from this agent's point of view; limit entries ride
on the proposal's entry price but are delegated to the gateway's refusal
behavior rather than tracked as resting orders. Trailing stops are not
implemented.
*/
package execution
