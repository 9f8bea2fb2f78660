// SPDX-License-Identifier: EPL-2.0

package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber queue length used when Subscribe
// is given a non-positive size.
const DefaultBufferSize = 256

// Bus fans events out to subscribers. Slow subscribers lose events rather
// than stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	dropped atomic.Uint64
}

// Subscription is one subscriber's queue.
type Subscription struct {
	C <-chan Event

	c      chan Event
	topics map[Topic]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a queue of the given size. With no topics the
// subscriber receives everything.
func (b *Bus) Subscribe(size int, topics ...Topic) *Subscription {
	if size <= 0 {
		size = DefaultBufferSize
	}

	c := make(chan Event, size)
	s := &Subscription{C: c, c: c}
	if len(topics) > 0 {
		s.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(c)
		return s
	}
	b.subs[s] = struct{}{}

	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is safe.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.c)
}

func (b *Bus) Publish(e Event) {
	if e == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if s.topics != nil {
			if _, ok := s.topics[e.Topic()]; !ok {
				continue
			}
		}

		select {
		case s.c <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped counts deliveries skipped because a queue was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Close unsubscribes everyone. Later Publish calls are no-ops and later
// subscriptions start closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		close(s.c)
	}
	clear(b.subs)
	b.closed = true
}
