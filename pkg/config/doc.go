/*
Package config loads and validates FTBA's YAML configuration.

One file configures the whole system: process-wide settings, the broker,
the gateway, and a section per agent. Defaults cover every key, so an
empty (or absent) file yields a runnable simulation setup, and a partial
file only overrides what it names.

# Architecture

	┌────────────────────── CONFIG ────────────────────────────┐
	│                                                            │
	│  Default() ──▶ Config{...}                                 │
	│                   │                                        │
	│  Load(path) ──────┤  yaml.Unmarshal over the defaults      │
	│                   │                                        │
	│  Validate() ◀─────┘  every problem reported at once        │
	│                                                            │
	│  Sections:                                                 │
	│  system | broker | gateway                                 │
	│  technical_analysis | fundamental_analysis                 │
	│  strategy_optimization | risk_management                   │
	│  asset_selection | execution                               │
	└──────────────────────────────────────────────────────────┘

# Shape

Every agent section inlines AgentConfig (update interval, batch size,
batch interval), so the runtime knobs read the same everywhere:

	risk_management:
	  update_interval_seconds: 60
	  batch_size: 10
	  batch_interval_ms: 500
	  max_account_risk_percent: 2.0

Durations are declared in the unit their magnitude suggests (seconds for
intervals, milliseconds for batch flushes) and converted through helper
methods, so the YAML never contains Go duration strings.

# Validation

Validate collects every problem into one error instead of stopping at the
first: unknown log levels, gateway types, and slippage models; percentage
bounds on the risk fractions; a non-empty primary asset list; weekday
names in the trading-hours table; a positive hold limit. Load runs it
automatically; `ftba validate -f file.yaml` runs it standalone.

# Usage

	cfg, err := config.Load(path) // "" returns pure defaults
	if err != nil {
		return err
	}
	b := broker.New(broker.Config{CacheTTL: cfg.Broker.CacheTTL()})

# Integration Points

  - cmd/ftba: loads the file, applies logging settings, wires sections
    into the broker, gateway, storage, and agent constructors
  - ftba.example.yaml at the repository root shows each section with its
    defaults; it does not list the per-agent batch_size and
    batch_interval_ms keys or gateway.proportional_slippage

# Limitations

No environment-variable expansion and no hot reload; configuration is
read once at startup. Secrets (the gateway API token) ride in the file,
so file permissions are the protection model.
*/
package config
