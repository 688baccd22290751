/*
Package fundamental implements the fundamental analysis agent.

The agent walks an economic calendar and keeps the rest of the system
aware of macro risk: an advance warning goes out before each high-impact
event so risk can widen its models, and a directional assessment goes out
when the release comes due. Trade results feed a rough tally of how often
those assessments aligned with profitable trades.

# Architecture

	┌──────────────── FUNDAMENTAL ANALYSIS AGENT ──────────────┐
	│                                                            │
	│  Inbox (via pkg/agent loop)                                │
	│  ┌────────────────────────────────────────────┐          │
	│  │  trade_result → forecast-alignment tally    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Economic Calendar                 │          │
	│  │  per event: currency, name, forecast,       │          │
	│  │  previous, surprise, impact grade,          │          │
	│  │  release offset, warned/released flags      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  Periodic pass                                             │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  inside warning window  → "Upcoming Event"  │          │
	│  │      update (neutral, once per event)       │          │
	│  │  past release time      → assessment with   │          │
	│  │      actual, direction from the surprise    │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Event Semantics

A warning is broadcast once per event when its release time enters the
configured warning window. The warning carries a neutral impact and the
"Upcoming Event:" prefix that risk keys its volatility bump on. When the
release comes due, the actual is derived from forecast plus surprise and
the impact direction follows the surprise's sign: a beat reads long for
the currency, a miss reads short, on-forecast reads neutral. Each event
releases exactly once.

# Alignment Tally

The last released direction per currency is remembered. Every trade result
on a pair containing an assessed currency counts toward the tally: a
profitable trade in the assessed direction, or a losing trade against it,
counts as aligned. The tally is logged at shutdown; it is bookkeeping, not
a trading input.

# Integration Points

  - pkg/agents/risk: consumes updates to widen volatility and track event
    proximity
  - pkg/agents/strategy: grades proposal alignment against the latest
    update per currency
  - pkg/agents/execution: indirectly, via results feeding the tally

# Limitations

The calendar ships as a static in-code schedule relative to agent start; a
live economic-calendar feed would replace sampleCalendar. News sentiment
from the original system is out of scope.
*/
package fundamental
