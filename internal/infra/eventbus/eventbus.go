// Package eventbus is the in-process publish/subscribe bus that carries
// session lifecycle events to optional observers (logger, NATS bridge).
//
// Design:
//   - Buffered Go channel per subscription (buffer=100).
//   - Publish is non-blocking: drops the event if a subscriber's buffer is full,
//     so an observer can never stall a conversation turn.
//   - Subscribe returns a read-only channel plus a cancel func that detaches
//     and closes it.
//   - No persistence: events are fire-and-forget.
package eventbus

import (
	"sync"
	"time"
)

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
	At      time.Time
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topics ...string) (<-chan Event, func())
}

const defaultBufferSize = 100

type subscription struct {
	ch     chan Event
	topics map[string]struct{} // empty = all topics
}

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

// Subscribe registers a subscriber for the given topics (all topics when none
// are given). The cancel func is idempotent.
func (b *Bus) Subscribe(topics ...string) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, defaultBufferSize), topics: make(map[string]struct{}, len(topics))}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish sends an Event to every matching subscriber.
// If a subscriber's buffer is full the event is dropped for that subscriber.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload, At: time.Now().UTC()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if len(sub.topics) > 0 {
			if _, ok := sub.topics[topic]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Close detaches and closes every subscription. Later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
