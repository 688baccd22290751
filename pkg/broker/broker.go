package broker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/metrics"
	"github.com/semillacaramelo/ftba/pkg/types"
)

var (
	// ErrAlreadyRegistered is returned when an agent id already owns an inbox
	ErrAlreadyRegistered = errors.New("agent already registered")

	// ErrInboxClosed is returned when popping from an unregistered inbox
	ErrInboxClosed = errors.New("inbox closed")
)

// DefaultCacheTTL bounds how long a subscriber snapshot stays fresh
const DefaultCacheTTL = 5 * time.Second

// Config holds broker configuration
type Config struct {
	CacheTTL      time.Duration // subscriber snapshot freshness window
	InboxCapacity int           // 0 = unbounded; >0 blocks publishers when full
}

// subscriberSnapshot is a value copy of a kind's subscriber set plus the time
// it was taken. Readers after invalidation can never observe a torn set.
type subscriberSnapshot struct {
	ids   []string
	taken time.Time
}

// Broker routes messages between registered agents. It owns every inbox and
// the subscription index; agents hold a non-owning handle and communicate
// through nothing else. All delivery errors stay inside the broker; publish
// never fails back to the caller.
type Broker struct {
	mu      sync.RWMutex
	inboxes map[string]*Inbox
	subs    map[types.MessageType]map[string]struct{}
	cache   map[types.MessageType]subscriberSnapshot

	cacheTTL      time.Duration
	inboxCapacity int
	nextID        atomic.Uint64
	logger        zerolog.Logger

	// now is swappable for cache-expiry tests
	now func() time.Time
}

// New creates a broker with the given configuration
func New(cfg Config) *Broker {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Broker{
		inboxes:       make(map[string]*Inbox),
		subs:          make(map[types.MessageType]map[string]struct{}),
		cache:         make(map[types.MessageType]subscriberSnapshot),
		cacheTTL:      ttl,
		inboxCapacity: cfg.InboxCapacity,
		logger:        log.WithComponent("broker"),
		now:           time.Now,
	}
}

// Register creates an empty inbox for the agent id and returns it. Registering
// an id twice fails with ErrAlreadyRegistered.
func (b *Broker) Register(agentID string) (*Inbox, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.inboxes[agentID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, agentID)
	}
	inbox := newInbox(b.inboxCapacity)
	b.inboxes[agentID] = inbox
	b.logger.Debug().Str("agent_id", agentID).Msg("Agent registered")
	return inbox, nil
}

// EnsureInbox is the idempotent registration variant: an existing inbox is
// returned with a warning instead of an error.
func (b *Broker) EnsureInbox(agentID string) *Inbox {
	b.mu.Lock()
	defer b.mu.Unlock()

	if inbox, exists := b.inboxes[agentID]; exists {
		b.logger.Warn().Str("agent_id", agentID).Msg("Agent already registered, reusing inbox")
		return inbox
	}
	inbox := newInbox(b.inboxCapacity)
	b.inboxes[agentID] = inbox
	return inbox
}

// Unregister removes the agent's inbox and purges the id from every
// subscription set. Snapshots touching the id are invalidated.
func (b *Broker) Unregister(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inbox, exists := b.inboxes[agentID]
	if !exists {
		return
	}
	delete(b.inboxes, agentID)
	inbox.close()

	for kind, set := range b.subs {
		if _, ok := set[agentID]; ok {
			delete(set, agentID)
			delete(b.cache, kind)
		}
	}
	b.logger.Debug().Str("agent_id", agentID).Msg("Agent unregistered")
}

// Registered reports whether an agent id currently owns an inbox
func (b *Broker) Registered(agentID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.inboxes[agentID]
	return ok
}

// Subscribe adds the agent to each kind's broadcast set. Kinds already
// subscribed are unaffected.
func (b *Broker) Subscribe(agentID string, kinds ...types.MessageType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range kinds {
		set, ok := b.subs[kind]
		if !ok {
			set = make(map[string]struct{})
			b.subs[kind] = set
		}
		if _, ok := set[agentID]; ok {
			continue
		}
		set[agentID] = struct{}{}
		delete(b.cache, kind)
	}
}

// Unsubscribe removes the agent from each kind's broadcast set
func (b *Broker) Unsubscribe(agentID string, kinds ...types.MessageType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range kinds {
		set, ok := b.subs[kind]
		if !ok {
			continue
		}
		if _, ok := set[agentID]; !ok {
			continue
		}
		delete(set, agentID)
		delete(b.cache, kind)
	}
}

// NextMessageID returns an opaque monotonically increasing id. The zero
// padding keeps lexicographic order aligned with assignment order.
func (b *Broker) NextMessageID() string {
	return fmt.Sprintf("%020d", b.nextID.Add(1))
}

// Publish routes one message. Non-empty recipients are delivered directly,
// skipping ids without an inbox; otherwise the message is broadcast to every
// current subscriber of its kind except the sender.
func (b *Broker) Publish(msg *types.Message) {
	b.stamp(msg)
	metrics.MessagesPublished.WithLabelValues(string(msg.Kind)).Inc()

	for _, target := range b.resolve(msg) {
		target.inbox.push(msg)
		metrics.MessagesDelivered.WithLabelValues(string(msg.Kind)).Inc()
	}
}

// PublishBatch routes a slice of messages with the same semantics as Publish,
// but groups messages per recipient first so each recipient's inbox is written
// in one pass. Per-recipient FIFO across the batch follows batch order.
func (b *Broker) PublishBatch(msgs []*types.Message) {
	if len(msgs) == 0 {
		return
	}

	grouped := make(map[*Inbox][]*types.Message)
	var order []*Inbox
	for _, msg := range msgs {
		b.stamp(msg)
		metrics.MessagesPublished.WithLabelValues(string(msg.Kind)).Inc()
		for _, target := range b.resolve(msg) {
			if _, seen := grouped[target.inbox]; !seen {
				order = append(order, target.inbox)
			}
			grouped[target.inbox] = append(grouped[target.inbox], msg)
			metrics.MessagesDelivered.WithLabelValues(string(msg.Kind)).Inc()
		}
	}

	for _, inbox := range order {
		inbox.pushAll(grouped[inbox])
	}
}

// stamp assigns the broker id and fills a missing timestamp
func (b *Broker) stamp(msg *types.Message) {
	msg.ID = b.NextMessageID()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
}

type target struct {
	id    string
	inbox *Inbox
}

// resolve computes the delivery set for a message
func (b *Broker) resolve(msg *types.Message) []target {
	if len(msg.Recipients) > 0 {
		b.mu.RLock()
		defer b.mu.RUnlock()

		targets := make([]target, 0, len(msg.Recipients))
		for _, id := range msg.Recipients {
			inbox, ok := b.inboxes[id]
			if !ok {
				b.logger.Debug().
					Str("recipient", id).
					Str("kind", string(msg.Kind)).
					Msg("Dropping message for unregistered recipient")
				metrics.MessagesDropped.WithLabelValues(string(msg.Kind)).Inc()
				continue
			}
			targets = append(targets, target{id: id, inbox: inbox})
		}
		return targets
	}

	ids := b.subscribers(msg.Kind)

	b.mu.RLock()
	defer b.mu.RUnlock()
	targets := make([]target, 0, len(ids))
	for _, id := range ids {
		if id == msg.Sender {
			continue
		}
		inbox, ok := b.inboxes[id]
		if !ok {
			continue
		}
		targets = append(targets, target{id: id, inbox: inbox})
	}
	return targets
}

// subscribers returns the subscriber snapshot for a kind, rebuilding it when
// older than the cache TTL. The snapshot is a value copy, so a reader can
// never observe a torn set across an invalidation.
func (b *Broker) subscribers(kind types.MessageType) []string {
	b.mu.RLock()
	if snap, ok := b.cache[kind]; ok && b.now().Sub(snap.taken) < b.cacheTTL {
		b.mu.RUnlock()
		return snap.ids
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	// Another publisher may have rebuilt the snapshot while the write lock
	// was pending.
	if snap, ok := b.cache[kind]; ok && b.now().Sub(snap.taken) < b.cacheTTL {
		return snap.ids
	}
	set := b.subs[kind]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	b.cache[kind] = subscriberSnapshot{ids: ids, taken: b.now()}
	return ids
}

// SubscriberCount returns the current number of subscribers for a kind
func (b *Broker) SubscriberCount(kind types.MessageType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// InboxDepths reports pending message counts per registered agent
func (b *Broker) InboxDepths() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	depths := make(map[string]int, len(b.inboxes))
	for id, inbox := range b.inboxes {
		depths[id] = inbox.Len()
	}
	return depths
}
