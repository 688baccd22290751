/*
Package metrics provides Prometheus metrics and health checking for FTBA.

The metrics package exposes package-level collectors for the broker, the
agent runtime, the trade workflow, and the gateway, plus a component
health checker with HTTP handlers for liveness, readiness, and health
endpoints. Everything registers in init, so importing a package that
counts is all the wiring there is.

# Architecture

	┌────────────────────── METRICS ───────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │        Package-level collectors             │          │
	│  │  broker / runtime / workflow / gateway      │          │
	│  │  (registered in init)                       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌─────────────────┐│┌──────────────────────────┐        │
	│  │  Collector       ││  HealthChecker            │        │
	│  │  samples inbox   ││  components registered    │        │
	│  │  depths on a     ││  and updated at runtime   │        │
	│  │  ticker          ││  critical: broker,        │        │
	│  └─────────────────┘│  gateway, execution       │        │
	│                     │└──────────────────────────┘        │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  HTTP: /metrics /health /ready /live       │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Metric Groups

Broker:
  - ftba_messages_published_total{kind}
  - ftba_messages_delivered_total{kind}
  - ftba_messages_dropped_total{kind}
  - ftba_inbox_depth{agent}

Agent runtime:
  - ftba_agent_cycles_total{agent}
  - ftba_agent_errors_total{agent,origin}
  - ftba_batch_flushes_total{agent,trigger}

Workflow:
  - ftba_proposals_total{decision}
  - ftba_trades_executed_total{status}
  - ftba_trades_closed_total{reason}
  - ftba_open_positions, ftba_account_balance, ftba_daily_pnl

Gateway:
  - ftba_gateway_orders_total{operation,outcome}
  - ftba_gateway_latency_seconds{operation}

# Health Checking

Components register at startup and update their status as conditions
change:

	metrics.RegisterComponent("broker", true, "running")
	metrics.UpdateComponent("gateway", false, "reconnecting")

Health reports every registered component and goes unhealthy if any one
is. Readiness is stricter and narrower: every critical component (broker,
gateway, execution) must be registered and healthy, so an instance that
is alive but cannot trade reports not_ready.

# HTTP Endpoints

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

/live always answers 200 while the process runs; /health and /ready
answer 503 when their condition fails, which is what probes key on.

# The Collector

Gauges that describe someone else's state (inbox depths) are sampled
rather than pushed: Collector ticks on an interval, reads depths through
the DepthSource interface, and sets the gauge. The interface lives here so
the broker does not import metrics' consumers.

# Alerting Hints

  - rate(ftba_agent_errors_total[5m]) > 0 sustained: a handler is failing
    on live traffic even though the loop survives
  - ftba_inbox_depth climbing for one agent: its loop stalled
  - ftba_daily_pnl near the configured cap: the circuit breaker is close
  - gateway orders with outcome="refused" spiking: symbol availability or
    account trouble upstream of the workflow

# Limitations

The Timer helper measures wall time only. Metrics are process-local; there
is no push gateway, and a restart zeroes every counter.
*/
package metrics
