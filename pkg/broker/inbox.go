package broker

import (
	"context"
	"sync"

	"github.com/semillacaramelo/ftba/pkg/types"
)

// Inbox is a per-agent FIFO of pending messages. The default inbox is
// unbounded; a positive capacity makes push block the publisher when full,
// propagating back-pressure up the workflow.
type Inbox struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	queue    []*types.Message
	capacity int
	closed   bool
}

func newInbox(capacity int) *Inbox {
	in := &Inbox{capacity: capacity}
	in.notEmpty = sync.NewCond(&in.mu)
	in.notFull = sync.NewCond(&in.mu)
	return in
}

// push appends a message, blocking while a bounded inbox is full. Messages
// pushed to a closed inbox are dropped.
func (in *Inbox) push(msg *types.Message) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for in.capacity > 0 && len(in.queue) >= in.capacity && !in.closed {
		in.notFull.Wait()
	}
	if in.closed {
		return
	}
	in.queue = append(in.queue, msg)
	in.notEmpty.Signal()
}

// pushAll appends a batch in one pass, preserving batch order. Bounded inboxes
// block per message once full.
func (in *Inbox) pushAll(msgs []*types.Message) {
	if in.capacity > 0 {
		for _, msg := range msgs {
			in.push(msg)
		}
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.queue = append(in.queue, msgs...)
	in.notEmpty.Broadcast()
}

// TryPop removes and returns the oldest message without blocking. It returns
// nil when the inbox is empty.
func (in *Inbox) TryPop() *types.Message {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.queue) == 0 {
		return nil
	}
	msg := in.queue[0]
	in.queue = in.queue[1:]
	in.notFull.Signal()
	return msg
}

// Pop blocks until a message is available, the inbox closes, or the context
// is canceled.
func (in *Inbox) Pop(ctx context.Context) (*types.Message, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			in.notEmpty.Broadcast()
		case <-done:
		}
	}()

	in.mu.Lock()
	defer in.mu.Unlock()
	for len(in.queue) == 0 && !in.closed && ctx.Err() == nil {
		in.notEmpty.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.queue) == 0 {
		return nil, ErrInboxClosed
	}
	msg := in.queue[0]
	in.queue = in.queue[1:]
	in.notFull.Signal()
	return msg, nil
}

// Len returns the number of pending messages
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}

// close marks the inbox dead, unblocking pending pushers and poppers and
// dropping the remaining queue.
func (in *Inbox) close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.queue = nil
	in.notEmpty.Broadcast()
	in.notFull.Broadcast()
}
