// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"sync"
	"sync/atomic"
)

// Connection is the handle for a voice attached to an Engine. Dispose
// detaches it; Done closes once the voice is gone for either reason.
type Connection struct {
	id     uint64
	voice  Voice
	remove func(*Connection)

	once     sync.Once
	done     chan struct{}
	finished atomic.Bool

	cleanupMu sync.Mutex
	cleanup   []func()
}

func newConnection(id uint64, v Voice, remove func(*Connection)) *Connection {
	return &Connection{
		id:     id,
		voice:  v,
		remove: remove,
		done:   make(chan struct{}),
	}
}

func (c *Connection) ID() uint64 { return c.id }

// Done is closed when the voice finishes or the connection is disposed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Finished reports whether the voice ran to its natural end.
func (c *Connection) Finished() bool { return c.finished.Load() }

// OnRelease registers fn to run once the connection is released. fn runs
// immediately when the connection is already released.
func (c *Connection) OnRelease(fn func()) {
	c.cleanupMu.Lock()
	select {
	case <-c.done:
		c.cleanupMu.Unlock()
		fn()
		return
	default:
	}
	c.cleanup = append(c.cleanup, fn)
	c.cleanupMu.Unlock()
}

// Dispose disconnects the voice. It is idempotent and safe on every path,
// including after a natural finish.
func (c *Connection) Dispose() {
	c.remove(c)
	c.release()
}

func (c *Connection) release() {
	c.once.Do(func() {
		c.cleanupMu.Lock()
		close(c.done)
		fns := c.cleanup
		c.cleanup = nil
		c.cleanupMu.Unlock()

		for _, fn := range fns {
			fn()
		}
	})
}

func (c *Connection) markFinished() {
	c.finished.Store(true)
}
