// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"sync"
	"sync/atomic"
	"time"
)

// CaptureStream is a fake microphone producing a constant level in real time.
type CaptureStream struct {
	Rate     int
	Channels int
	Level    float32
	Interval time.Duration

	started atomic.Bool
	stopped atomic.Bool
	closed  atomic.Bool

	mu   sync.Mutex
	quit chan struct{}
	done chan struct{}
}

func NewCaptureStream(rate, channels int, level float32) *CaptureStream {
	return &CaptureStream{
		Rate:     rate,
		Channels: channels,
		Level:    level,
		Interval: 10 * time.Millisecond,
	}
}

func (s *CaptureStream) Start(onData func(samples []float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started.Store(true)
	s.quit = make(chan struct{})
	s.done = make(chan struct{})

	frames := int(s.Interval.Seconds() * float64(s.Rate))
	go func(quit, done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				chunk := make([]float32, frames*s.Channels)
				for i := range chunk {
					chunk[i] = s.Level
				}
				onData(chunk)
			}
		}
	}(s.quit, s.done)

	return nil
}

func (s *CaptureStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quit != nil && !s.stopped.Load() {
		close(s.quit)
		<-s.done
	}
	s.stopped.Store(true)

	return nil
}

func (s *CaptureStream) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *CaptureStream) Started() bool { return s.started.Load() }
func (s *CaptureStream) Stopped() bool { return s.stopped.Load() }
func (s *CaptureStream) Closed() bool  { return s.closed.Load() }
