package service

import "sync"

// Resources and actions carried by events.
const (
	ResourceLayers    = "layers"
	ResourceSelection = "selection"
	ResourceSessions  = "sessions"

	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionReloaded = "reloaded"
	ActionSynced   = "synced"
)

// Event is a catalogue mutation or a selection change in a session.
type Event struct {
	Resource string // "layers", "selection" or "sessions"
	Action   string // created, updated, deleted, reloaded; selected, unselected, indeterminate; synced
	ID       string // layer ID
	Session  string // viewer session, selection events only
}

// EventBus fans events out to subscribers without blocking the publisher.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish delivers e to every subscriber with room in its buffer. Slow
// subscribers miss the event.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			busLog.WithField("resource", e.Resource).Debug("subscriber full, event dropped")
		}
	}
}

// Subscribe returns a buffered channel receiving every later event.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it. Unknown channels are ignored.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Len returns the number of subscribers.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
