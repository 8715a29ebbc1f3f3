package core

import (
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultEventBuffer is the per-subscriber buffer used when none is configured.
const DefaultEventBuffer = 100

type subscription struct {
	pattern string
	ch      chan Event
}

// Broker fans change events out to pattern-filtered subscribers.
//
// Sends are non-blocking: a subscriber whose buffer is full misses the event
// instead of stalling the write path.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
	closed bool
}

// NewBroker creates a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Broker{
		subs:   make(map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for events whose Key matches pattern.
// An empty pattern matches everything. The returned cancel function
// unsubscribes and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(pattern string) (<-chan Event, func(), error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}

	sub := &subscription{pattern: pattern, ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}, nil
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel, nil
}

// Publish delivers e to every matching subscriber.
func (b *Broker) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	key := e.Key()
	for sub := range b.subs {
		if e.Type != EventReload {
			if ok, _ := doublestar.Match(sub.pattern, key); !ok {
				continue
			}
		}
		select {
		case sub.ch <- e:
		default:
			// subscriber is slow, drop the event
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone. Later subscriptions receive a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
