/*
Package log provides structured logging for FTBA using zerolog.

The log package keeps one root logger and derives child loggers for the
fields that recur across the trading system: component names, agent ids,
and trade correlation ids. Components take a child logger at construction
time and never touch the root directly afterwards.

# Architecture

	┌─────────────────────── LOGGING ──────────────────────────┐
	│                                                            │
	│  Init(Config) ──▶ root Logger (level, format, output)     │
	│                        │                                   │
	│        ┌───────────────┼────────────────┐                 │
	│        ▼               ▼                ▼                 │
	│  WithComponent    WithAgent        WithTrade(logger,      │
	│  ("broker",       ("risk_          proposalID,            │
	│   "gateway",       management",    executionID)           │
	│   "storage")       ...)            adds only non-empty    │
	│                                     correlation ids       │
	└──────────────────────────────────────────────────────────┘

Before Init the root is a no-op logger, so package initialization order
never matters: a component constructed before logging is configured simply
logs nothing until the CLI calls Init.

# Output Formats

Console output (development) is human-readable with "15:04:05" timestamps.
JSON output (production) is machine-parseable, one object per line:

	{"level":"info","agent_id":"trade_execution","proposal_id":"...","time":"...","message":"Trade executed"}

The level is applied to the logger itself rather than zerolog's process
global, so tests and embedded uses can run different levels side by side.
An unknown level string falls back to info.

# Usage

Initialization, once, from the CLI entry point:

	log.Init(log.Config{Level: "debug", JSONOutput: false})

Component and agent loggers at construction:

	logger := log.WithComponent("broker")
	logger := log.WithAgent("risk_management")

Narrowing to one trade where both ids are in scope (either may be empty
and is then left off):

	log.WithTrade(a.logger, p.ID, executionID).Info().
		Str("symbol", p.Symbol).
		Msg("Trade executed")

# Field Conventions

  - component: infrastructure pieces (broker, gateway, storage, metrics)
  - agent_id: every record an agent writes; this is what makes the
    runtime's swallowed-error logs attributable
  - proposal_id / execution_id: workflow correlation, added via WithTrade
  - message_id / kind / from: added ad hoc by the agent runtime when a
    handler fails, so one log line identifies the exact message

# Log Levels

  - debug: message routing, cache rebuilds, per-cycle detail
  - info: lifecycle transitions, trade workflow milestones
  - warn: dropped recipients, double start, duplicate ids, stale data
  - error: swallowed handler errors, gateway failures
*/
package log
