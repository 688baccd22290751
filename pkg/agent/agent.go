package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/metrics"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// State is the lifecycle state of an agent
type State string

const (
	StateNew      State = "new"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

const (
	// DefaultBatchSize bounds messages drained per loop iteration and the
	// outbound buffer size that forces a flush
	DefaultBatchSize = 10

	// DefaultBatchInterval bounds how long a trickle of outbound messages
	// may wait before flushing
	DefaultBatchInterval = 500 * time.Millisecond

	errorBackoff = time.Second
	idleYield    = 10 * time.Millisecond
)

// Handler holds the domain logic of a concrete agent. The runtime calls
// Setup once before the loop, HandleMessage for every drained message,
// ProcessCycle once per loop iteration, and Cleanup once after the loop
// exits.
type Handler interface {
	Setup(ctx context.Context) error
	HandleMessage(ctx context.Context, msg *types.Message) error
	ProcessCycle(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// Options tunes the agent runtime
type Options struct {
	BatchSize     int
	BatchInterval time.Duration
}

// BaseAgent runs a Handler on the cooperative loop every agent shares:
// drain the inbox, flush the outbound batch, run one periodic cycle. Errors
// inside the handler are logged and swallowed so one agent can never take
// down another or the broker.
type BaseAgent struct {
	id      string
	broker  *broker.Broker
	handler Handler
	logger  zerolog.Logger

	batchSize     int
	batchInterval time.Duration

	mu        sync.Mutex
	state     State
	inbox     *broker.Inbox
	outbound  []*types.Message
	lastFlush time.Time
	flushGen  uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New wraps a handler in the shared agent runtime
func New(id string, b *broker.Broker, handler Handler, opts Options) *BaseAgent {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchInterval := opts.BatchInterval
	if batchInterval <= 0 {
		batchInterval = DefaultBatchInterval
	}
	return &BaseAgent{
		id:            id,
		broker:        b,
		handler:       handler,
		logger:        log.WithAgent(id),
		batchSize:     batchSize,
		batchInterval: batchInterval,
		state:         StateNew,
	}
}

// ID returns the agent id
func (a *BaseAgent) ID() string {
	return a.id
}

// State returns the current lifecycle state
func (a *BaseAgent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start registers the agent with the broker, runs Setup, and launches the
// cooperative loop. Start is legal only from the new state; a second call is
// a warning no-op.
func (a *BaseAgent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateNew {
		state := a.state
		a.mu.Unlock()
		a.logger.Warn().Str("state", string(state)).Msg("Start ignored, agent not in new state")
		return nil
	}
	a.mu.Unlock()

	inbox, err := a.broker.Register(a.id)
	if err != nil {
		return fmt.Errorf("failed to register agent %s: %w", a.id, err)
	}

	if err := a.handler.Setup(ctx); err != nil {
		a.broker.Unregister(a.id)
		return fmt.Errorf("agent %s setup failed: %w", a.id, err)
	}

	a.mu.Lock()
	a.inbox = inbox
	a.state = StateRunning
	a.lastFlush = time.Now()
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	go a.run(ctx)
	a.logger.Info().Msg("Agent started")
	return nil
}

// Stop flushes the outbound batch, signals the loop, waits for it to finish
// its pass, runs Cleanup, and unregisters from the broker. A second call is
// a no-op.
func (a *BaseAgent) Stop() {
	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		a.logger.Debug().Msg("Stop ignored, agent not running")
		return
	}
	a.state = StateStopping
	stopCh, doneCh := a.stopCh, a.doneCh
	a.mu.Unlock()

	a.flush("stop")
	close(stopCh)
	<-doneCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	func() {
		defer a.recoverPanic("cleanup")
		if err := a.handler.Cleanup(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Cleanup failed")
		}
	}()

	// Anything queued by Cleanup still goes out.
	a.flush("stop")

	a.broker.Unregister(a.id)

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	a.logger.Info().Msg("Agent stopped")
}

// run is the cooperative loop. One iteration drains up to batchSize inbox
// messages, flushes an aged outbound batch on idle, and runs one process
// cycle. The loop exits only on stop or context cancellation.
func (a *BaseAgent) run(ctx context.Context) {
	defer close(a.doneCh)

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		processed := 0
		for processed < a.batchSize {
			msg := a.inbox.TryPop()
			if msg == nil {
				break
			}
			a.dispatch(ctx, msg)
			processed++
		}

		if processed == 0 {
			a.flushIfAged()
		}

		if err := a.cycle(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Process cycle failed")
			metrics.AgentErrors.WithLabelValues(a.id, "cycle").Inc()
			a.sleep(errorBackoff)
			continue
		}
		metrics.AgentCycles.WithLabelValues(a.id).Inc()

		if processed == 0 {
			a.sleep(idleYield)
		}
	}
}

// dispatch invokes HandleMessage, swallowing errors and panics. The message
// counts as consumed either way.
func (a *BaseAgent) dispatch(ctx context.Context, msg *types.Message) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Interface("panic", r).
				Str("origin", "handle_message").
				Str("message_id", msg.ID).
				Str("kind", string(msg.Kind)).
				Str("from", msg.Sender).
				Msg("Recovered panic")
			metrics.AgentErrors.WithLabelValues(a.id, "handle_message").Inc()
		}
	}()
	if err := a.handler.HandleMessage(ctx, msg); err != nil {
		a.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Str("kind", string(msg.Kind)).
			Str("from", msg.Sender).
			Msg("Message handler failed")
		metrics.AgentErrors.WithLabelValues(a.id, "handle_message").Inc()
	}
}

// cycle invokes ProcessCycle, converting panics into errors
func (a *BaseAgent) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in process cycle: %v", r)
		}
	}()
	return a.handler.ProcessCycle(ctx)
}

func (a *BaseAgent) recoverPanic(origin string) {
	if r := recover(); r != nil {
		a.logger.Error().Interface("panic", r).Str("origin", origin).Msg("Recovered panic")
		metrics.AgentErrors.WithLabelValues(a.id, origin).Inc()
	}
}

// sleep waits interruptibly, returning early on stop
func (a *BaseAgent) sleep(d time.Duration) {
	select {
	case <-a.stopCh:
	case <-time.After(d):
	}
}

// SendMessage buffers an outbound message. The buffer flushes when it reaches
// batchSize; the first message in an empty buffer arms a one-shot timer so a
// trickle still flushes after batchInterval.
func (a *BaseAgent) SendMessage(kind types.MessageType, payload types.Payload, recipients ...string) {
	msg := &types.Message{
		Kind:       kind,
		Sender:     a.id,
		Recipients: recipients,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}

	a.mu.Lock()
	a.outbound = append(a.outbound, msg)
	if len(a.outbound) >= a.batchSize {
		batch := a.takeLocked()
		a.mu.Unlock()
		a.publish(batch, "size")
		return
	}
	if len(a.outbound) == 1 {
		gen := a.flushGen
		time.AfterFunc(a.batchInterval, func() { a.timedFlush(gen) })
	}
	a.mu.Unlock()
}

// timedFlush flushes the batch the timer was armed for. If the generation
// advanced, a size or stop flush already won the race and the timer yields.
func (a *BaseAgent) timedFlush(gen uint64) {
	a.mu.Lock()
	if a.flushGen != gen || len(a.outbound) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.takeLocked()
	a.mu.Unlock()
	a.publish(batch, "interval")
}

// flushIfAged flushes a non-empty batch whose last flush is older than
// batchInterval. Called from the loop on idle iterations.
func (a *BaseAgent) flushIfAged() {
	a.mu.Lock()
	if len(a.outbound) == 0 || time.Since(a.lastFlush) < a.batchInterval {
		a.mu.Unlock()
		return
	}
	batch := a.takeLocked()
	a.mu.Unlock()
	a.publish(batch, "idle")
}

// flush unconditionally publishes any buffered messages
func (a *BaseAgent) flush(trigger string) {
	a.mu.Lock()
	if len(a.outbound) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.takeLocked()
	a.mu.Unlock()
	a.publish(batch, trigger)
}

// takeLocked detaches the current batch and advances the flush generation.
// Caller holds the mutex.
func (a *BaseAgent) takeLocked() []*types.Message {
	batch := a.outbound
	a.outbound = nil
	a.flushGen++
	a.lastFlush = time.Now()
	return batch
}

func (a *BaseAgent) publish(batch []*types.Message, trigger string) {
	a.broker.PublishBatch(batch)
	metrics.BatchFlushes.WithLabelValues(a.id, trigger).Inc()
}

// SubscribeTo subscribes this agent to broadcasts of the given kinds
func (a *BaseAgent) SubscribeTo(kinds ...types.MessageType) {
	a.broker.Subscribe(a.id, kinds...)
}

// UnsubscribeFrom removes this agent from broadcasts of the given kinds
func (a *BaseAgent) UnsubscribeFrom(kinds ...types.MessageType) {
	a.broker.Unsubscribe(a.id, kinds...)
}

// Logger returns the agent's logger for use by handlers
func (a *BaseAgent) Logger() zerolog.Logger {
	return a.logger
}
