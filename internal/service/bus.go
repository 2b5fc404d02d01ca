// Package service holds the in-process plumbing shared by the viewer
// handlers: a per-session event bus and a registry of viewer sessions.
package service

import (
	"sync"
	"sync/atomic"
)

// Event kinds.
const (
	KindSignals = "signals" // Payload is map[string]any
	KindPatch   = "patch"   // Target is a CSS selector, Payload an HTML string
	KindEvent   = "event"   // Target is a browser event name
)

// Event is one UI update for a viewer session.
type Event struct {
	Session string
	Kind    string
	Target  string
	Payload any
}

// EventBus is a fan-out pub/sub of UI updates keyed by session.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]*subscriber
}

type subscriber struct {
	session string
	lagged  atomic.Bool
}

// subscriberBuffer holds a few clicks' worth of updates.
const subscriberBuffer = 64

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]*subscriber)}
}

// Publish sends an event to the subscribers of its session (non-blocking).
// An event without a session goes to every subscriber.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, sub := range b.subs {
		if e.Session != "" && e.Session != sub.session {
			continue
		}
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip and flag it for a resync
			sub.lagged.Store(true)
		}
	}
}

// Subscribe returns a buffered channel that receives the session's events.
func (b *EventBus) Subscribe(session string) chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = &subscriber{session: session}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// Lagged reports whether events were dropped for ch since the last call.
func (b *EventBus) Lagged(ch chan Event) bool {
	b.mu.RLock()
	sub, ok := b.subs[ch]
	b.mu.RUnlock()
	return ok && sub.lagged.Swap(false)
}
