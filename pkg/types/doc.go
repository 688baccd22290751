/*
Package types defines the shared data model for FTBA's agents and broker.

Every value that crosses an agent boundary is declared here: the message
envelope, the closed set of message kinds, the payload record for each
kind, and the enums (direction, confidence, trade status, timeframe, close
reason) used on the wire. Payloads form a tagged union over Message.Kind:
consumers pattern-match with a type switch, never through untyped maps.

# Architecture

	┌─────────────────────── DATA MODEL ─────────────────────────┐
	│                                                              │
	│  ┌────────────────────────────────────────────┐            │
	│  │              Message Envelope               │            │
	│  │  ID (broker-assigned, monotonic)            │            │
	│  │  Kind (closed enum, 13 kinds)               │            │
	│  │  Sender / Recipients                        │            │
	│  │  Payload (tagged union)                     │            │
	│  │  Timestamp (UTC)                            │            │
	│  └──────────────────┬─────────────────────────┘            │
	│                     │                                        │
	│  ┌──────────────────▼─────────────────────────┐            │
	│  │              Payload Variants               │            │
	│  │                                              │            │
	│  │  Analysis:  TechnicalSignal                 │            │
	│  │             FundamentalUpdate               │            │
	│  │             MarketData                      │            │
	│  │  Workflow:  TradeProposal                   │            │
	│  │             TradeApproval / TradeRejection  │            │
	│  │             TradeExecution                  │            │
	│  │             TradeResult                     │            │
	│  │  Risk:      RiskAssessment / RiskUpdate     │            │
	│  │  Control:   SystemStatus / StrategyUpdate   │            │
	│  │             ErrorReport                     │            │
	│  └────────────────────────────────────────────┘             │
	└────────────────────────────────────────────────────────────┘

# Message Kinds

Producers and consumers per kind:

	technical_signal    technical → strategy, risk
	fundamental_update  fundamental → strategy, risk
	market_data         external feed → technical
	trade_proposal      strategy → risk
	trade_approval      risk → execution, strategy
	trade_rejection     risk → strategy
	risk_assessment     attached to approvals
	risk_update         risk → any observer
	trade_execution     execution → risk, observers
	trade_result        execution → strategy, risk, fundamental
	strategy_update     strategy → any observer
	system_status       asset selection, risk → varies
	error               any → any observer

The set is closed: new kinds are a code change here, not a runtime
registration.

# Proposal State Machine

A proposal's status only moves forward:

	proposed ──▶ approved ──▶ executed ──▶ closed
	    │            │
	    │            └──▶ expired | canceled
	    └──▶ rejected | expired | canceled

CanTransition encodes the edge set; Rank gives the total order used to
check monotonicity; IsTerminal marks the states with no exits. Status is
informational on the wire: each transition is a new message of its own
kind, and agents track status in their own maps keyed by proposal id, so
no two agents ever contend over one record.

# Usage

Consuming a message is a type switch on the payload:

	switch payload := msg.Payload.(type) {
	case types.TradeProposal:
		evaluate(payload)
	case types.TradeResult:
		account(payload)
	}

Producing one fills the typed record and lets the broker stamp the rest:

	b.Publish(&types.Message{
		Kind:    types.MessageTradeRejection,
		Sender:  id,
		Payload: types.TradeRejection{ProposalID: p.ID, Reason: reason},
	})

# Conventions

Timestamps are UTC wall times. Sizes are units of base currency. Stop and
take distances are pips; PipSize converts per symbol (1/100 for JPY
quotes, 1/10000 otherwise). Symbols are "BASE/QUOTE"; BaseCurrency,
QuoteCurrency, and SharesCurrency are the helpers the fallback-symbol and
exposure logic is built on.

Messages are immutable once published: receivers share a read-only view,
and anything a receiver wants to change it copies into its own state
first.

# Limitations

There is no serialization here by design: the model crosses goroutine
boundaries, not process boundaries. The JSON tags live with pkg/storage's
persisted records instead.
*/
package types
