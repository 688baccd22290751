/*
Package gateway abstracts the broker connection used by the execution agent.

The core treats a gateway as an opaque capability with six operations:
connect, disconnect, quote, place, close, and symbol listing. Everything
market-specific (slippage, contract mapping, reconnection) lives behind
the interface; the execution agent never learns which implementation it is
talking to.

# Architecture

	┌────────────────────── GATEWAY ───────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Gateway interface                │          │
	│  │  Connect / Disconnect                       │          │
	│  │  CurrentPrice(symbol)                       │          │
	│  │  PlaceOrder(req) / CloseOrder(...)          │          │
	│  │  ListActiveSymbols(market)                  │          │
	│  └────────┬──────────────────────┬────────────┘          │
	│           │                      │                        │
	│  ┌────────▼────────┐    ┌───────▼──────────────┐        │
	│  │  Simulated       │    │  Deriv               │        │
	│  │  - seeded majors │    │  - websocket JSON    │        │
	│  │  - random-walk   │    │  - req_id matching   │        │
	│  │    quotes        │    │  - tick cache        │        │
	│  │  - slippage      │    │  - backoff reconnect │        │
	│  │    models        │    │    (1s → 30s cap)    │        │
	│  │  - FillRatio     │    │                      │        │
	│  │    test hook     │    │                      │        │
	│  └─────────────────┘    └──────────────────────┘        │
	└──────────────────────────────────────────────────────────┘

# Error Discipline

Two failure channels, deliberately distinct:

  - Transport failures return an error. A failed call is not retried
    inside the adapter (the Deriv adapter reconnects in the background
    with exponential backoff after a read failure, and calls made
    meanwhile fail at once); the execution agent leaves the trade
    pending and tries again next cycle.
  - Refusals return a result with Success=false and an informational
    Error string. A refusal is the exchange saying no; the execution
    agent converts it into a canceled proposal and never retries.

# Simulated Gateway

Prices start at typical levels for the eight majors and random-walk up to
two pips on every quote read, which is enough motion to exercise stop and
take logic without a feed. Fills apply a fixed (pips) or proportional
slippage model on the appropriate side: longs fill at ask plus slippage,
shorts at bid minus. SetPrice pins a mid price and FillRatio scales
executed sizes, which is how tests produce deterministic closes and
partial fills. The walk is seeded deterministically so test runs repeat.

# Deriv Adapter

The adapter speaks the Deriv JSON websocket API: requests carry a req_id
and responses are matched back to waiting calls; tick subscriptions stream
into a quote cache that CurrentPrice reads (the first request for a symbol
subscribes it, so early reads miss until ticks arrive). A read failure
outside shutdown triggers reconnection with exponential backoff from one
second to a thirty-second cap, restoring tick subscriptions afterwards.
API errors in a response surface as refusals; everything else is
transport.

# Usage

	gw := gateway.NewSimulated(gateway.SimulatedConfig{
		SlippageModel:     gateway.SlippageFixed,
		FixedSlippagePips: 1.0,
	})
	if err := gw.Connect(ctx); err != nil {
		return err
	}
	defer gw.Disconnect()

	result, err := gw.PlaceOrder(ctx, gateway.OrderRequest{
		Symbol:    "EUR/USD",
		Direction: types.DirectionLong,
		Size:      10000,
		Type:      gateway.OrderTypeMarket,
	})
	if err != nil {
		return err // transport; retry later
	}
	if !result.Success {
		cancel(result.Error) // refusal; do not retry
	}

# Monitoring

  - ftba_gateway_orders_total{operation,outcome}: filled vs refused per
    place/close
  - ftba_gateway_latency_seconds{operation}: round-trip histograms
  - the health checker's "gateway" component flips unhealthy while the
    Deriv adapter is reconnecting

# Limitations

The simulated market has no order book, sessions, or weekend gaps; its
only purpose is deterministic workflow exercise. The Deriv adapter maps
directional trades onto multiplier contracts and does not model contract
expiry or partial closes.
*/
package gateway
