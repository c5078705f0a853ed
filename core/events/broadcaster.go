package events

import (
	"sync"
)

// DropFunc is notified when a subscriber misses an event because its buffer
// was full.
type DropFunc func(subscriber string)

// Broadcaster fans committed events out to any number of subscribers. Emit
// never blocks: a subscriber that falls behind loses events rather than
// stalling execution.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	onDrop DropFunc
}

type subscription struct {
	name string
	ch   chan Event
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*subscription)}
}

// SetDropHandler installs a callback for dropped deliveries.
func (b *Broadcaster) SetDropHandler(fn DropFunc) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

// Subscribe registers a named subscriber. The returned cancel function closes
// the channel and is safe to call more than once.
func (b *Broadcaster) Subscribe(name string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscription{name: name, ch: make(chan Event, buffer)}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Emit implements the Emitter interface.
func (b *Broadcaster) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			if b.onDrop != nil {
				b.onDrop(sub.name)
			}
		}
	}
}

// Buffer collects events emitted during a single call so they can be
// released only once the call commits.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []Event {
	out := b.events
	b.events = nil
	return out
}

// Reset discards buffered events.
func (b *Buffer) Reset() { b.events = nil }
