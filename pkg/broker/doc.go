/*
Package broker provides the in-process message broker for FTBA's agents.

The broker is the only shared mutable structure in the system. It owns a
FIFO inbox per registered agent and a subscription index from message kind
to the set of interested agents, and it routes both direct and broadcast
messages with single or batched publish. Agents hold a non-owning handle;
the broker outlives all of them.

# Architecture

	┌──────────────────── MESSAGE BROKER ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Routing Core                   │          │
	│  │  - Inbox table (agent id → FIFO)            │          │
	│  │  - Subscription index (kind → id set)       │          │
	│  │  - Subscriber cache (kind → snapshot, TTL)  │          │
	│  │  - Monotonic message id counter             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Delivery Rules                 │          │
	│  │                                              │          │
	│  │  Recipients set   → direct: only registered │          │
	│  │                     ids, unknown dropped    │          │
	│  │  Recipients empty → broadcast: subscribers  │          │
	│  │                     of kind, never sender   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Inboxes                        │          │
	│  │  unbounded by default                       │          │
	│  │  bounded → push blocks the publisher        │          │
	│  │  TryPop for loop draining, Pop to block     │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Core Components

Broker:
  - Central router owning all shared state
  - Register/EnsureInbox/Unregister manage the inbox table
  - Subscribe/Unsubscribe manage the kind index
  - Publish/PublishBatch deliver; NextMessageID stamps

Inbox:
  - Per-agent FIFO of pending messages
  - Created at registration, closed and drained at unregistration
  - TryPop (non-blocking), Pop (blocking, context-aware), Len

Subscriber snapshot:
  - Value copy of one kind's subscriber set plus the time it was taken
  - Served while younger than the cache TTL, rebuilt on demand after

# Publish Flow

 1. Publisher calls Publish (or an agent's batch flush calls PublishBatch)
 2. The broker assigns the next monotonic id and stamps a missing timestamp
 3. Direct messages resolve each recipient against the inbox table;
    unregistered ids are dropped with a debug log
 4. Broadcasts resolve the kind's subscriber snapshot (cache if fresh),
    excluding the sender
 5. The message is appended to every resolved inbox; a bounded inbox that
    is full blocks the publisher until the receiver drains

# Batch Flow

PublishBatch stamps ids in batch order, groups the messages per recipient
inbox, and appends each recipient's group in a single inbox pass. That is
what makes a batch land contiguously: no concurrent publisher can
interleave between two messages of the same flush at the same receiver.

# Ordering Guarantees

  - Per (sender, receiver) pair, messages arrive in publish order.
  - A PublishBatch call is observed by each eligible receiver as a
    contiguous run in the batch's internal order.
  - No ordering is guaranteed across different sender/receiver pairs.

Message ids are zero-padded decimals of an atomic counter, so id order,
assignment order, and lexicographic order agree. Callers should treat the
id as opaque.

# Subscriber Cache

Resolving broadcast subscribers takes a value snapshot of the id set,
stamped with the time it was taken. Snapshots older than the configured
TTL are rebuilt on demand; subscribe, unsubscribe, and unregister
invalidate the snapshot of every kind they touch, so hygiene is immediate
even mid-TTL. Because the snapshot is a copy, a reader can never observe a
torn set while a mutation is in flight.

# Failure Semantics

Publish never returns an error. Direct recipients without an inbox are
dropped with a debug log and a counter bump; handler failures are the
receiver's problem, not the broker's. With a bounded inbox capacity
configured, a full inbox blocks the publisher, propagating back-pressure
up the workflow; the default is unbounded. Closing an inbox (via
Unregister) unblocks any pending pushers and poppers and discards the
remaining queue.

# Concurrency

All broker state sits behind one RWMutex: reads (resolution, counts) take
the read lock, mutations (registration, subscription, cache rebuild) take
the write lock. Inboxes carry their own mutex and condition variables so
delivery to one slow agent never holds the broker lock. No lock is held
across an inbox append that could block.

# Usage

	b := broker.New(broker.Config{CacheTTL: 5 * time.Second})

	inbox, err := b.Register("risk_management")
	if err != nil {
		return err
	}
	b.Subscribe("risk_management", types.MessageTradeProposal)

	b.Publish(&types.Message{
		Kind:    types.MessageTradeProposal,
		Sender:  "strategy_optimization",
		Payload: proposal,
	})

	for msg := inbox.TryPop(); msg != nil; msg = inbox.TryPop() {
		handle(msg)
	}

# Monitoring

  - ftba_messages_published_total{kind}: publishes accepted
  - ftba_messages_delivered_total{kind}: inbox appends performed
  - ftba_messages_dropped_total{kind}: direct recipients not registered
  - ftba_inbox_depth{agent}: queue depth, sampled by pkg/metrics.Collector

A growing inbox depth for one agent with flat delivery counts elsewhere
means that agent's loop has stalled or its handler is slow.

# Limitations

Single process, at-most-once: nothing is persisted, and a message popped
by a crashing agent is gone. Kind fan-out is linear in subscriber count.
These are deliberate; the system's unit of recovery is a restart.
*/
package broker
