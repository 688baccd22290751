/*
Package technical implements the technical analysis agent.

The agent turns raw prices into directional hints. It accumulates a
bounded per-symbol price history from market_data traffic and gateway
quotes, runs its indicators once per interval, and broadcasts a
technical_signal for every reading strong enough to clear the configured
threshold.

# Architecture

	┌──────────────── TECHNICAL ANALYSIS AGENT ────────────────┐
	│                                                            │
	│  Inbox (via pkg/agent loop)                                │
	│  ┌────────────────────────────────────────────┐          │
	│  │  market_data   → append to history          │          │
	│  │  system_status{availability_update}         │          │
	│  │                → adopt recommended list     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Price Histories                  │          │
	│  │  symbol → []mid price (bounded ring)        │          │
	│  │  watch list → sampled from gateway each     │          │
	│  │  periodic pass                              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Indicators                     │          │
	│  │  EMA(9) × EMA(20) crossover → long/short    │          │
	│  │  RSI(14) <30 → long, >70 → short            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  Outbound batch: technical_signal broadcasts               │
	└──────────────────────────────────────────────────────────┘

# Signal Semantics

A crossover fires only on the step where the fast EMA actually crosses the
slow one; staying above or below is not a signal. Its strength scales with
the post-cross separation (ten pips of separation reads as full strength).
RSI fires outside the 30/70 band with strength proportional to the
excursion. Strength maps onto the shared confidence scale, and signals
below the configured value threshold are suppressed before they reach the
wire.

# Data Flow

Histories need fifty prices before any indicator runs, so a fresh symbol
warms up silently. The history is capped at the configured depth; old
prices fall off the front. The watch list tracks asset selection's
recommended set, which keeps gateway sampling focused on symbols the
system would actually trade.

# Integration Points

  - pkg/agents/strategy: primary consumer of the signals
  - pkg/agents/risk: bumps volatility models on strong signals
  - pkg/agents/assetselection: supplies the watch list
  - pkg/gateway: CurrentPrice sampling per periodic pass

# Limitations

Two indicators, one timeframe. The analysis interval is the sampling
interval; there is no candle aggregation, and indicator math beyond EMA
and RSI (MACD, Bollinger) is intentionally absent.
*/
package technical
