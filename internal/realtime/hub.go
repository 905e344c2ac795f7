// Package realtime fans chat inserts out to live viewers.
package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/jw6ventures/powerchat/internal/metrics"
	"github.com/jw6ventures/powerchat/internal/store"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Hub delivers published messages to every live subscription in publish
// order. Publish never blocks: a subscriber whose buffer is full misses the
// message.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscription is one viewer's feed. The owner must call Close when it stops
// reading.
type Subscription struct {
	hub     *Hub
	ch      chan store.Message
	once    sync.Once
	dropped atomic.Int64
}

// Subscribe registers a new feed. After Close it returns an already closed
// subscription.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan store.Message, h.buffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.AddRealtimeSubscribers(1)
	return sub
}

// Close ends every live subscription, which lets open streams finish during
// server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

func (h *Hub) Publish(msg store.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- msg:
		default:
			sub.dropped.Add(1)
			metrics.IncRealtimeDropped()
		}
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// C returns the receive side; it is closed by Close.
func (s *Subscription) C() <-chan store.Message {
	return s.ch
}

// Dropped counts messages this subscriber missed.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
		metrics.AddRealtimeSubscribers(-1)
	})
}
