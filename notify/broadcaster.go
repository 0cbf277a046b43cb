// Package notify delivers workflow events to downstream consumers: in-process
// subscribers, a RabbitMQ topic exchange, webhooks and the log.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teranos/hireflow/workflow"
)

// DefaultSubscriberBuffer is the channel capacity given to each subscriber
const DefaultSubscriberBuffer = 64

// Broadcaster fans events out to subscribers without ever blocking the
// publisher. A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uint64]chan workflow.Event
	nextID  uint64
	buffer  int
	dropped atomic.Int64
}

// NewBroadcaster creates a broadcaster; buffer <= 0 uses DefaultSubscriberBuffer
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{subs: make(map[uint64]chan workflow.Event), buffer: buffer}
}

// Subscribe registers a new subscriber. Call cancel to unsubscribe; it closes the channel.
func (b *Broadcaster) Subscribe() (events <-chan workflow.Event, cancel func()) {
	ch := make(chan workflow.Event, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Emit implements workflow.Emitter
func (b *Broadcaster) Emit(_ context.Context, event workflow.Event) error {
	b.Publish(event)
	return nil
}

// Publish delivers event to every subscriber with room and returns how many accepted it
func (b *Broadcaster) Publish(event workflow.Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sent := 0
	for _, ch := range b.subs {
		select {
		case ch <- event:
			sent++
		default:
			b.dropped.Add(1)
		}
	}
	return sent
}

// Subscribers returns the current subscriber count
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}
