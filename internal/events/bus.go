package events

import (
	"sync"
	"sync/atomic"
)

// EventKind represents the type of domain event produced by the storage layer.
type EventKind string

const (
	EventPromptCreated EventKind = "prompt_created"
	EventPromptUpdated EventKind = "prompt_updated"
	EventPromptDeleted EventKind = "prompt_deleted"
	EventGuildChanged  EventKind = "guild_changed"
	EventGuildDeleted  EventKind = "guild_deleted"
)

// Event carries only ids; subscribers re-query storage for full records.
type Event struct {
	Kind     EventKind `json:"kind"`
	PromptID string    `json:"promptId,omitempty"`
	OwnerID  string    `json:"ownerId,omitempty"`
	GuildID  string    `json:"guildId,omitempty"`
	// MemberIDs is the union of guild members before and after a guild change,
	// so removed members also learn that their view changed.
	MemberIDs []string `json:"memberIds,omitempty"`

	// Remote is set for events relayed from another service instance.
	Remote bool `json:"-"`
}

// HasMember reports whether userID is listed in MemberIDs.
func (e Event) HasMember(userID string) bool {
	for _, id := range e.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Feed is one consumer's view of the bus.
type Feed struct {
	ch     chan Event
	accept func(Event) bool
	lagged atomic.Bool
	cancel func()
}

// Events yields accepted events in publish order. It is closed by Cancel or Bus.Close.
func (f *Feed) Events() <-chan Event { return f.ch }

// Lagged reports whether at least one accepted event was dropped because the
// buffer was full since the previous call, and clears the flag. A consumer
// that sees it must treat its view as stale.
func (f *Feed) Lagged() bool { return f.lagged.Swap(false) }

// Cancel unregisters the feed and closes Events. Safe to call more than once.
func (f *Feed) Cancel() { f.cancel() }

// Bus is a lightweight in-process pub-sub that fans each event out to every subscriber.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*Feed
	nextID int
	buffer int
	closed bool
}

// NewBus creates a bus whose subscriber channels default to buffer entries.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus{subs: make(map[int]*Feed), buffer: buffer}
}

// Publish delivers evt to every interested subscriber without blocking.
// Returns the number of subscribers whose buffer was full; those feeds are marked lagged.
func (b *Bus) Publish(evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	dropped := 0
	for _, f := range b.subs {
		if f.accept != nil && !f.accept(evt) {
			continue
		}
		select {
		case f.ch <- evt:
		default:
			f.lagged.Store(true)
			dropped++
		}
	}
	return dropped
}

// Watch registers a consumer that only receives events accepted by accept
// (all events when nil). accept runs on the publisher's goroutine and must not block.
func (b *Bus) Watch(buffer int, accept func(Event) bool) *Feed {
	if buffer <= 0 {
		buffer = b.buffer
	}
	f := &Feed{ch: make(chan Event, buffer), accept: accept}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(f.ch)
		f.cancel = func() {}
		return f
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = f
	b.mu.Unlock()

	var once sync.Once
	f.cancel = func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(f.ch)
			}
		})
	}
	return f
}

// Subscribe registers a consumer of every event. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	f := b.Watch(buffer, nil)
	return f.Events(), f.Cancel
}

// Subscribers returns the number of registered consumers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, f := range b.subs {
		delete(b.subs, id)
		close(f.ch)
	}
}
