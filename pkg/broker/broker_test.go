package broker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semillacaramelo/ftba/pkg/types"
)

func newTestBroker() *Broker {
	return New(Config{CacheTTL: time.Minute})
}

func statusMsg(sender string, recipients ...string) *types.Message {
	return &types.Message{
		Kind:       types.MessageSystemStatus,
		Sender:     sender,
		Recipients: recipients,
		Payload:    types.SystemStatus{Event: "test"},
	}
}

func drain(in *Inbox) []*types.Message {
	var msgs []*types.Message
	for {
		msg := in.TryPop()
		if msg == nil {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	b := newTestBroker()

	_, err := b.Register("a")
	require.NoError(t, err)

	_, err = b.Register("a")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestEnsureInboxReusesExisting(t *testing.T) {
	b := newTestBroker()

	first, err := b.Register("a")
	require.NoError(t, err)

	second := b.EnsureInbox("a")
	assert.Same(t, first, second)
}

func TestFIFOPerPair(t *testing.T) {
	b := newTestBroker()

	inbox, err := b.Register("receiver")
	require.NoError(t, err)
	b.Subscribe("receiver", types.MessageSystemStatus)

	for i := 0; i < 100; i++ {
		b.Publish(statusMsg("sender"))
	}

	msgs := drain(inbox)
	require.Len(t, msgs, 100)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].ID, msgs[i].ID, "delivery out of publish order")
	}
}

func TestNoSelfDelivery(t *testing.T) {
	b := newTestBroker()

	sender, err := b.Register("sender")
	require.NoError(t, err)
	other, err := b.Register("other")
	require.NoError(t, err)
	b.Subscribe("sender", types.MessageSystemStatus)
	b.Subscribe("other", types.MessageSystemStatus)

	b.Publish(statusMsg("sender"))

	assert.Equal(t, 0, sender.Len(), "broadcast delivered to its own sender")
	assert.Equal(t, 1, other.Len())
}

func TestSubscriptionHygiene(t *testing.T) {
	b := newTestBroker()

	inbox, err := b.Register("a")
	require.NoError(t, err)
	b.Subscribe("a", types.MessageSystemStatus)

	// Warm the cache with a first broadcast.
	b.Publish(statusMsg("x"))
	require.Equal(t, 1, inbox.Len())

	// Unsubscribing must invalidate the cached snapshot immediately.
	b.Unsubscribe("a", types.MessageSystemStatus)
	b.Publish(statusMsg("x"))

	assert.Equal(t, 1, inbox.Len(), "broadcast delivered after unsubscribe")
}

func TestDirectAddressing(t *testing.T) {
	b := newTestBroker()

	inboxA, _ := b.Register("a")
	inboxB, _ := b.Register("b")

	// "ghost" is not registered: silently dropped.
	b.Publish(statusMsg("x", "a", "ghost"))

	assert.Equal(t, 1, inboxA.Len())
	assert.Equal(t, 0, inboxB.Len())
}

func TestDirectIgnoresSubscriptions(t *testing.T) {
	b := newTestBroker()

	inboxA, _ := b.Register("a")
	inboxB, _ := b.Register("b")
	b.Subscribe("b", types.MessageSystemStatus)

	b.Publish(statusMsg("x", "a"))

	assert.Equal(t, 1, inboxA.Len())
	assert.Equal(t, 0, inboxB.Len(), "direct message leaked to a subscriber")
}

func TestBatchContiguity(t *testing.T) {
	b := newTestBroker()

	inbox1, _ := b.Register("r1")
	inbox2, _ := b.Register("r2")
	b.Subscribe("r1", types.MessageTradeExecution)
	b.Subscribe("r2", types.MessageTradeExecution)

	batch := []*types.Message{
		{Kind: types.MessageTradeExecution, Sender: "exec", Payload: types.TradeExecution{ExecutionID: "e1"}},
		{Kind: types.MessageTradeExecution, Sender: "exec", Payload: types.TradeExecution{ExecutionID: "e2"}},
		{Kind: types.MessageTradeExecution, Sender: "exec", Payload: types.TradeExecution{ExecutionID: "e3"}},
	}
	b.PublishBatch(batch)

	for _, inbox := range []*Inbox{inbox1, inbox2} {
		msgs := drain(inbox)
		require.Len(t, msgs, 3)
		for i, want := range []string{"e1", "e2", "e3"} {
			exec := msgs[i].Payload.(types.TradeExecution)
			assert.Equal(t, want, exec.ExecutionID)
		}
	}
}

func TestMessageIDMonotonic(t *testing.T) {
	b := newTestBroker()

	prev := b.NextMessageID()
	for i := 0; i < 1000; i++ {
		next := b.NextMessageID()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestUnregisterPurgesSubscriptions(t *testing.T) {
	b := newTestBroker()

	_, err := b.Register("a")
	require.NoError(t, err)
	b.Subscribe("a", types.MessageSystemStatus, types.MessageTradeResult)

	// Warm the cache.
	b.Publish(statusMsg("x"))

	b.Unregister("a")
	assert.False(t, b.Registered("a"))
	assert.Equal(t, 0, b.SubscriberCount(types.MessageSystemStatus))
	assert.Equal(t, 0, b.SubscriberCount(types.MessageTradeResult))

	// Publishing after unregister must not panic or deliver anywhere.
	b.Publish(statusMsg("x"))
}

func TestCacheSnapshotExpiresByTTL(t *testing.T) {
	b := newTestBroker()

	now := time.Now()
	b.now = func() time.Time { return now }

	inboxA, _ := b.Register("a")
	b.Subscribe("a", types.MessageSystemStatus)
	b.Publish(statusMsg("x"))
	require.Equal(t, 1, inboxA.Len())

	// Sneak a subscriber into the index without touching the cache, the way
	// no public path can: the fresh snapshot must keep serving the old set.
	inboxB, _ := b.Register("b")
	b.mu.Lock()
	b.subs[types.MessageSystemStatus]["b"] = struct{}{}
	b.mu.Unlock()

	b.Publish(statusMsg("x"))
	assert.Equal(t, 0, inboxB.Len(), "stale snapshot should not see the new subscriber yet")

	// Past the TTL the snapshot rebuilds and picks it up.
	now = now.Add(2 * time.Minute)
	b.Publish(statusMsg("x"))

	assert.Equal(t, 3, inboxA.Len())
	assert.Equal(t, 1, inboxB.Len())
}

func TestBoundedInboxBlocksPublisher(t *testing.T) {
	b := New(Config{CacheTTL: time.Minute, InboxCapacity: 1})

	inbox, err := b.Register("slow")
	require.NoError(t, err)
	b.Subscribe("slow", types.MessageSystemStatus)

	b.Publish(statusMsg("x"))

	published := make(chan struct{})
	go func() {
		b.Publish(statusMsg("x"))
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("publish to a full bounded inbox did not block")
	case <-time.After(50 * time.Millisecond):
	}

	// Draining one message releases the blocked publisher.
	require.NotNil(t, inbox.TryPop())
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after drain")
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := newTestBroker()

	inbox, _ := b.Register("r")
	b.Subscribe("r", types.MessageSystemStatus)

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Publish(statusMsg("sender"))
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 400, inbox.Len())
}
