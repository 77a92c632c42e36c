// Package eventbus implements the typed publish/subscribe bus that decouples
// the engine's services. Each subscriber owns a bounded queue; when a
// subscriber falls behind, the bus drops that subscriber's oldest queued event
// to make room for the newest one. Publishing therefore never blocks and never
// fails; slow consumers degrade their own delivery only.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"go.uber.org/zap"
)

// DefaultBufferSize is the per-subscriber queue capacity used when the
// configured size is zero.
const DefaultBufferSize = 1024

// Subscription is one subscriber's handle to the bus. Events matching the
// subscription's filter are delivered on Events() in publish order.
type Subscription struct {
	id      uint64
	filter  EventFilter
	ch      chan types.Event
	bus     *Bus
	dropped atomic.Uint64
}

// Events returns the channel the subscription's events are delivered on. The
// channel is closed when the subscription or the bus is closed.
func (s *Subscription) Events() <-chan types.Event {
	return s.ch
}

// Dropped returns the number of events discarded because the subscriber's
// queue was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close removes the subscription from the bus and closes its channel. Safe to
// call concurrently with Publish and safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s.id)
}

// Bus fans published events out to all matching live subscriptions.
type Bus struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool
	log        *logger.Logger
}

// NewBus creates a bus whose subscriptions buffer up to bufferSize events.
func NewBus(log *logger.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Bus{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Subscribe registers a new subscription with the given filter. Subscribing on
// a closed bus returns a subscription whose channel is already closed.
func (b *Bus) Subscribe(filter EventFilter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		filter: filter,
		ch:     make(chan types.Event, b.bufferSize),
		bus:    b,
	}

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subs[sub.id] = sub

	return sub
}

// Publish delivers the event to every live subscription whose filter matches.
// When a subscriber's queue is full the oldest queued event is dropped so the
// newest one fits; the drop is counted and logged, never an error.
func (b *Bus) Publish(event types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
			continue
		default:
		}

		// Queue full: evict the oldest event, then retry once.
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
		default:
		}

		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
			b.log.Warn("event dropped for slow subscriber",
				zap.Uint64("subscription", sub.id),
				zap.String("tag", string(event.Tag())))
		}
	}
}

// Close closes the bus and every live subscription. Publishing after Close is
// a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}

	delete(b.subs, id)
	close(sub.ch)
}
