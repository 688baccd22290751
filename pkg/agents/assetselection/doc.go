/*
Package assetselection implements the asset selection agent.

The agent decides which symbols the rest of the system may trade right
now. It combines a per-weekday trading-hours table with the gateway's
active symbol list, maintains available and recommended sets, broadcasts
them at setup and on every periodic pass, and answers addressed availability requests to
the requesting agent only.

# Architecture

	┌──────────────── ASSET SELECTION AGENT ───────────────────┐
	│                                                            │
	│  Inbox (via pkg/agent loop)                                │
	│  ┌────────────────────────────────────────────┐          │
	│  │  system_status{asset_availability_request}  │          │
	│  │        → addressed response to sender       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Availability State               │          │
	│  │  - trading-hours table (weekday → open/     │          │
	│  │    close, close shaved by tolerance)        │          │
	│  │  - primary and fallback symbol lists        │          │
	│  │  - gateway active-symbol intersection       │          │
	│  │  - available / recommended sets             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  Outbound batch                                            │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  system_status{asset_availability_update}   │          │
	│  │      (broadcast, every periodic pass)       │          │
	│  │  system_status{asset_availability_response} │          │
	│  │      (direct, to the requester)             │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Availability Computation

With the market open for the current UTC weekday, the available set is the
configured primaries plus fallbacks, intersected with the gateway's active
list when a gateway is attached. Recommended symbols are the available
primaries, or the available fallbacks when no primary trades. A closed
market empties both sets, which downstream reads as "do not open
anything".

# Trading Hours

The table maps lowercase weekday names to "HH:MM" open/close pairs in UTC;
"24:00" closes at end of day and a missing or empty entry closes the whole
day. The tolerance setting shaves minutes off the close so trades never
open into an imminent session end, mirroring how desks stop quoting before
the Friday close.

# Request/Response Contract

Updates are broadcast: every subscriber of system_status sees them. A
request, however, is answered with a direct message to msg.Sender alone,
so an agent refreshing a stale cache does not cause a fleet-wide
re-broadcast.

# Integration Points

  - pkg/agents/execution: caches the updates, sends the requests
  - pkg/agents/technical: follows the recommended list as its watch list
  - pkg/gateway: ListActiveSymbols narrows the configured universe

# Limitations

Holiday calendars are not modeled; the table only knows weekdays. Symbol
availability is re-checked on the periodic interval, not pushed by the
gateway.
*/
package assetselection
