// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"context"
	"sync"
)

// flight is one in-progress fetch shared by every concurrent Load of the
// same id. waiters is guarded by the cache mutex.
type flight struct {
	cancel context.CancelFunc
	done   chan struct{}

	result CachedBuffer
	err    error

	waiters int

	mu        sync.Mutex
	listeners map[int]Progress
	nextID    int
	last      float64
}

func newFlight(cancel context.CancelFunc) *flight {
	return &flight{
		cancel:    cancel,
		done:      make(chan struct{}),
		listeners: make(map[int]Progress),
	}
}

// listen registers fn and returns its id and the latest progress. The
// caller replays last to fn once it holds no locks.
func (f *flight) listen(fn Progress) (int, float64) {
	if fn == nil {
		return -1, 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.listeners[f.nextID] = fn

	return f.nextID, f.last
}

func (f *flight) unlisten(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.listeners, id)
}

func (f *flight) report(fraction float64) {
	f.mu.Lock()
	if fraction <= f.last {
		f.mu.Unlock()
		return
	}
	f.last = fraction
	fns := make([]Progress, 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(fraction)
	}
}
