/*
Package agent provides the shared runtime every FTBA agent runs on.

A concrete agent supplies a Handler (Setup, HandleMessage, ProcessCycle,
Cleanup); BaseAgent supplies everything else: broker registration, the
cooperative loop, inbox draining, outbound batching, lifecycle management,
and error isolation. Six agents with very different domain logic share
exactly one loop implementation.

# Architecture

	┌──────────────────── AGENT RUNTIME ───────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              BaseAgent                      │          │
	│  │  - id, broker handle, inbox                 │          │
	│  │  - lifecycle state machine                  │          │
	│  │  - outbound batch + flush timer             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │ one goroutine                        │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Cooperative Loop                  │          │
	│  │                                              │          │
	│  │  1. drain ≤ BatchSize inbox messages        │          │
	│  │       → Handler.HandleMessage each          │          │
	│  │  2. idle? flush aged outbound batch         │          │
	│  │  3. Handler.ProcessCycle once               │          │
	│  │       error → 1s backoff                    │          │
	│  │  4. no work at all? yield 10ms              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Outbound Batch                    │          │
	│  │  SendMessage appends; flush on:             │          │
	│  │  - size ≥ BatchSize (immediate)             │          │
	│  │  - age ≥ BatchInterval (one-shot timer)     │          │
	│  │  - stop (always, twice around Cleanup)      │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Lifecycle

	new ──Start──▶ running ──Stop──▶ stopping ──▶ stopped

Start is legal only from new: it registers the inbox, runs Setup (a Setup
error unregisters and leaves the agent in new), and launches the loop. A
repeated Start logs a warning and does nothing. Stop flushes the outbound
batch, signals the loop, waits for the current pass to finish, runs
Cleanup, flushes again so Cleanup's messages go out, and unregisters. A
repeated Stop is a no-op. There is no restart; a stopped agent stays
stopped.

# Loop Contract

One iteration of the cooperative loop:

 1. Drain up to BatchSize messages from the inbox with TryPop. A handler
    error or panic is logged with the message id, kind, and sender, then
    swallowed; the message counts as consumed either way.
 2. If nothing was drained and the outbound batch has aged past
    BatchInterval, flush it. This is the idle path that keeps a quiet
    agent's stragglers moving.
 3. Run ProcessCycle exactly once. An error or panic is logged, swallowed,
    and followed by a one-second backoff so a failing agent cannot spin.
 4. If the iteration did no work, yield for ten milliseconds.

Only stop and context cancellation exit the loop. An agent's failure never
reaches another agent or the broker; that is the error-isolation property
the workflow depends on.

# Outbound Batching

SendMessage appends to a per-agent buffer instead of publishing directly,
so a burst of related messages leaves in one broker PublishBatch call and
lands contiguously at every receiver. The buffer flushes when it reaches
BatchSize, when it ages past BatchInterval, or when the agent stops. The
first message appended to an empty buffer arms a one-shot timer for
BatchInterval; the timer and the size threshold converge on a single flush
through a generation counter, so the race between them cannot double-send
or drop a batch.

# Usage

	type myHandler struct {
		*agent.BaseAgent
	}

	func (h *myHandler) Setup(ctx context.Context) error {
		h.SubscribeTo(types.MessageTradeResult)
		return nil
	}

	func (h *myHandler) HandleMessage(ctx context.Context, msg *types.Message) error {
		result, ok := msg.Payload.(types.TradeResult)
		if !ok {
			return nil
		}
		return h.apply(result)
	}

	func (h *myHandler) ProcessCycle(ctx context.Context) error { return nil }
	func (h *myHandler) Cleanup(ctx context.Context) error      { return nil }

	handler := &myHandler{}
	handler.BaseAgent = agent.New("my_agent", b, handler, agent.Options{})
	if err := handler.Start(ctx); err != nil {
		return err
	}
	defer handler.Stop()

Every concrete agent in pkg/agents follows this embedding shape: the
struct is the Handler, the embedded BaseAgent is the runtime.

# Integration Points

  - pkg/broker: registration, subscription helpers, batch publish
  - pkg/agents/*: the six concrete handlers
  - pkg/metrics: cycles, swallowed errors by origin, flushes by trigger

# Monitoring

  - ftba_agent_cycles_total{agent}: loop liveness; a flatline means the
    agent stopped or is stuck in a long ProcessCycle
  - ftba_agent_errors_total{agent,origin}: swallowed failures, split by
    handle_message, cycle, and cleanup
  - ftba_batch_flushes_total{agent,trigger}: size vs interval vs idle vs
    stop tells you whether an agent is bursty or trickling

# Limitations

Handlers run on the agent's single goroutine: per-agent state needs no
locking, but a slow HandleMessage delays everything behind it, including
the periodic cycle. Timeouts around external calls belong to the handler
(in practice the gateway adapter), not the runtime.
*/
package agent
