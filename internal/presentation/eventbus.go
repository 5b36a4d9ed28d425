package presentation

import (
	"sync"
	"sync/atomic"
)

// EventBus fans encoded events out to stream subscribers and keeps a ring
// buffer of the most recent ones.
type EventBus struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	ring    [][]byte
	ringPos int
	ringLen int
	dropped atomic.Int64
}

// NewEventBus creates an event bus remembering up to size events.
func NewEventBus(size int) *EventBus {
	if size < 1 {
		size = 1
	}
	return &EventBus{
		clients: make(map[chan []byte]struct{}),
		ring:    make([][]byte, size),
	}
}

// Publish records data and delivers it to every subscriber without blocking.
func (eb *EventBus) Publish(data []byte) {
	data = append([]byte(nil), data...)

	eb.mu.Lock()
	eb.ring[eb.ringPos] = data
	eb.ringPos = (eb.ringPos + 1) % len(eb.ring)
	if eb.ringLen < len(eb.ring) {
		eb.ringLen++
	}
	clients := make([]chan []byte, 0, len(eb.clients))
	for ch := range eb.clients {
		clients = append(clients, ch)
	}
	eb.mu.Unlock()

	for _, ch := range clients {
		select {
		case ch <- data:
		default:
			// Slow subscriber.
			eb.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of events and a function that ends the
// subscription.
func (eb *EventBus) Subscribe() (<-chan []byte, func()) {
	ch, _, unsub := eb.SubscribeWithRecent()
	return ch, unsub
}

// SubscribeWithRecent is Subscribe that also returns the buffered events,
// oldest first. Every event appears either in the snapshot or on the
// channel, never both.
func (eb *EventBus) SubscribeWithRecent() (<-chan []byte, [][]byte, func()) {
	ch := make(chan []byte, 16)
	eb.mu.Lock()
	eb.clients[ch] = struct{}{}
	recent := eb.recentLocked()
	eb.mu.Unlock()

	var once sync.Once
	return ch, recent, func() {
		once.Do(func() {
			eb.mu.Lock()
			delete(eb.clients, ch)
			eb.mu.Unlock()
		})
	}
}

// Recent returns the buffered events, oldest first.
func (eb *EventBus) Recent() [][]byte {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.recentLocked()
}

func (eb *EventBus) recentLocked() [][]byte {
	result := make([][]byte, 0, eb.ringLen)
	start := (eb.ringPos - eb.ringLen + len(eb.ring)) % len(eb.ring)
	for i := 0; i < eb.ringLen; i++ {
		result = append(result, eb.ring[(start+i)%len(eb.ring)])
	}
	return result
}

// Subscribers returns the number of active subscriptions.
func (eb *EventBus) Subscribers() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.clients)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}
