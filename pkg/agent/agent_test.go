package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// stubHandler records runtime callbacks and can fail on demand
type stubHandler struct {
	mu        sync.Mutex
	handled   []*types.Message
	cycles    int
	setupErr  error
	handleErr func(n int, msg *types.Message) error
	cleanedUp bool
}

func (h *stubHandler) Setup(ctx context.Context) error { return h.setupErr }

func (h *stubHandler) HandleMessage(ctx context.Context, msg *types.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.handled)
	h.handled = append(h.handled, msg)
	if h.handleErr != nil {
		return h.handleErr(n, msg)
	}
	return nil
}

func (h *stubHandler) ProcessCycle(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cycles++
	return nil
}

func (h *stubHandler) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanedUp = true
	return nil
}

func (h *stubHandler) handledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func (h *stubHandler) cycleCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cycles
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStartStopLifecycle(t *testing.T) {
	b := broker.New(broker.Config{})
	h := &stubHandler{}
	a := New("test_agent", b, h, Options{})

	require.Equal(t, StateNew, a.State())
	require.NoError(t, a.Start(context.Background()))
	require.Equal(t, StateRunning, a.State())
	assert.True(t, b.Registered("test_agent"))

	a.Stop()
	assert.Equal(t, StateStopped, a.State())
	assert.False(t, b.Registered("test_agent"))
	assert.True(t, h.cleanedUp)
}

func TestDoubleStartIsNoop(t *testing.T) {
	b := broker.New(broker.Config{})
	a := New("test_agent", b, &stubHandler{}, Options{})

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	// A second start must not re-register or error.
	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, StateRunning, a.State())
}

func TestDoubleStopIsNoop(t *testing.T) {
	b := broker.New(broker.Config{})
	a := New("test_agent", b, &stubHandler{}, Options{})

	require.NoError(t, a.Start(context.Background()))
	a.Stop()
	a.Stop()
	assert.Equal(t, StateStopped, a.State())
}

func TestSetupFailureUnregisters(t *testing.T) {
	b := broker.New(broker.Config{})
	h := &stubHandler{setupErr: errors.New("boom")}
	a := New("test_agent", b, h, Options{})

	require.Error(t, a.Start(context.Background()))
	assert.False(t, b.Registered("test_agent"))
	assert.Equal(t, StateNew, a.State())
}

func TestMessagesDispatchInOrder(t *testing.T) {
	b := broker.New(broker.Config{})
	h := &stubHandler{}
	a := New("receiver", b, h, Options{})

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	for i := 0; i < 25; i++ {
		b.Publish(&types.Message{
			Kind:       types.MessageSystemStatus,
			Sender:     "tester",
			Recipients: []string{"receiver"},
			Payload:    types.SystemStatus{Event: "test"},
		})
	}

	waitFor(t, func() bool { return h.handledCount() == 25 }, "messages not drained")

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 1; i < len(h.handled); i++ {
		assert.Less(t, h.handled[i-1].ID, h.handled[i].ID)
	}
}

func TestErrorIsolation(t *testing.T) {
	b := broker.New(broker.Config{})
	h := &stubHandler{
		handleErr: func(n int, msg *types.Message) error {
			if n%2 == 0 {
				return errors.New("even message failure")
			}
			return nil
		},
	}
	a := New("receiver", b, h, Options{})

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	for i := 0; i < 10; i++ {
		b.Publish(&types.Message{
			Kind:       types.MessageSystemStatus,
			Sender:     "tester",
			Recipients: []string{"receiver"},
			Payload:    types.SystemStatus{Event: "test"},
		})
	}

	// Every message is consumed despite half the handlers failing, and the
	// loop keeps producing periodic work.
	waitFor(t, func() bool { return h.handledCount() == 10 }, "failing handler stalled the loop")
	before := h.cycleCount()
	waitFor(t, func() bool { return h.cycleCount() > before }, "loop stopped cycling after errors")
}

func TestPanicIsolation(t *testing.T) {
	b := broker.New(broker.Config{})
	h := &stubHandler{
		handleErr: func(n int, msg *types.Message) error {
			if n == 0 {
				panic("first message panics")
			}
			return nil
		},
	}
	a := New("receiver", b, h, Options{})

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	for i := 0; i < 3; i++ {
		b.Publish(&types.Message{
			Kind:       types.MessageSystemStatus,
			Sender:     "tester",
			Recipients: []string{"receiver"},
			Payload:    types.SystemStatus{Event: "test"},
		})
	}

	waitFor(t, func() bool { return h.handledCount() == 3 }, "panic stopped the loop")
}

func TestBatchFlushOnSize(t *testing.T) {
	b := broker.New(broker.Config{})
	sink, err := b.Register("sink")
	require.NoError(t, err)
	b.Subscribe("sink", types.MessageSystemStatus)

	a := New("sender", b, &stubHandler{}, Options{BatchSize: 3, BatchInterval: time.Minute})
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{Event: "one"})
	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{Event: "two"})
	assert.Equal(t, 0, sink.Len(), "batch flushed before reaching size threshold")

	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{Event: "three"})
	waitFor(t, func() bool { return sink.Len() == 3 }, "size threshold did not flush")
}

func TestBatchFlushOnInterval(t *testing.T) {
	b := broker.New(broker.Config{})
	sink, err := b.Register("sink")
	require.NoError(t, err)
	b.Subscribe("sink", types.MessageSystemStatus)

	a := New("sender", b, &stubHandler{}, Options{BatchSize: 100, BatchInterval: 30 * time.Millisecond})
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{Event: "trickle"})
	waitFor(t, func() bool { return sink.Len() == 1 }, "interval timer did not flush trickle")
}

func TestStopFlushesOutbound(t *testing.T) {
	b := broker.New(broker.Config{})
	sink, err := b.Register("sink")
	require.NoError(t, err)
	b.Subscribe("sink", types.MessageSystemStatus)

	a := New("sender", b, &stubHandler{}, Options{BatchSize: 100, BatchInterval: time.Hour})
	require.NoError(t, a.Start(context.Background()))

	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{Event: "pending"})
	a.Stop()

	assert.Equal(t, 1, sink.Len(), "stop did not flush the outbound batch")
}

func TestSubscribeHelpers(t *testing.T) {
	b := broker.New(broker.Config{})
	a := New("helper", b, &stubHandler{}, Options{})

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	a.SubscribeTo(types.MessageTradeResult, types.MessageTradeExecution)
	assert.Equal(t, 1, b.SubscriberCount(types.MessageTradeResult))

	a.UnsubscribeFrom(types.MessageTradeResult)
	assert.Equal(t, 0, b.SubscriberCount(types.MessageTradeResult))
	assert.Equal(t, 1, b.SubscriberCount(types.MessageTradeExecution))
}
