// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/events"
	"github.com/ik5/vocalengine/graph"
)

// Releaser is implemented by cache leases.
type Releaser interface {
	Release()
}

// Session is one playing buffer. Its methods are safe for concurrent use;
// the render thread only reads atomics and params.
type Session struct {
	id       SessionID
	sourceID string
	engine   *graph.Engine
	buf      *audio.Buffer
	src      *graph.BufferSource
	gain     *graph.Gain
	lease    Releaser

	chain atomic.Pointer[graph.Chain]

	paused  atomic.Bool
	stopped atomic.Bool
	elapsed atomic.Uint64
	startAt atomic.Uint64

	baseVolume atomic.Uint64
	scale      atomic.Uint64

	mu     sync.Mutex
	closed bool
	conn   *graph.Connection
	once   sync.Once
}

func (s *Session) ID() SessionID { return s.id }

// SourceID is the cache id the buffer came from, empty for external buffers.
func (s *Session) SourceID() string           { return s.sourceID }
func (s *Session) Buffer() *audio.Buffer      { return s.buf }
func (s *Session) Engine() *graph.Engine      { return s.engine }
func (s *Session) Gain() *graph.Param         { return s.gain.Param() }
func (s *Session) PlaybackRate() *graph.Param { return s.src.PlaybackRate() }
func (s *Session) Paused() bool               { return s.paused.Load() }

// Chain is the current effect chain.
func (s *Session) Chain() *graph.Chain { return s.chain.Load() }

// Position is the playhead in buffer seconds.
func (s *Session) Position() float64 { return s.src.Position() }

// Elapsed is audio-clock seconds played, pauses excluded.
func (s *Session) Elapsed() float64 { return loadFloat(&s.elapsed) }

// StartedAt is the audio-clock time of the first rendered block.
func (s *Session) StartedAt() float64 { return loadFloat(&s.startAt) }

// Volume is the user volume set at play time or by SetVolume.
func (s *Session) Volume() float64 { return loadFloat(&s.baseVolume) }

// VolumeScale multiplies Volume; the adaptive controller drives it.
func (s *Session) VolumeScale() float64 { return loadFloat(&s.scale) }

// SetVolumeScale ramps the gain to Volume() * scale over seconds.
func (s *Session) SetVolumeScale(scale, seconds float64) error {
	storeFloat(&s.scale, scale)
	return s.applyVolume(seconds)
}

func (s *Session) setVolume(v, seconds float64) error {
	storeFloat(&s.baseVolume, v)
	return s.applyVolume(seconds)
}

func (s *Session) applyVolume(seconds float64) error {
	return s.engine.ApplyRamp(s.gain.Param(), s.Volume()*s.VolumeScale(), seconds)
}

// RebuildEffects replaces the effect chain. The old chain is disposed;
// audio keeps flowing through whichever chain is current.
func (s *Session) RebuildEffects(kind graph.EffectKind, p graph.EffectParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrUnknownSession
	}

	next, err := s.engine.BuildEffectChain(kind, p)
	if err != nil {
		return err
	}

	if old := s.chain.Swap(next); old != nil {
		old.Dispose()
	}

	return nil
}

// close disposes the chain and drops the buffer lease. It reports false
// when the session was already closed.
func (s *Session) close() bool {
	first := false
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if c := s.chain.Load(); c != nil {
			c.Dispose()
		}
		if s.lease != nil {
			s.lease.Release()
		}
		first = true
	})

	return first
}

func (s *Session) event(kind Kind, elapsed float64) Event {
	start, end := s.src.Window()
	return newEvent(s.id, kind, s.src.Position(), elapsed, start, end)
}

// voice is the session's render-thread view.
type voice struct {
	s        *Session
	sink     events.Sink
	interval float64
	started  bool
	elapsed  float64
	last     float64
}

func (v *voice) Process(dst []float32, clock graph.Clock) bool {
	s := v.s
	if !v.started {
		v.started = true
		storeFloat(&s.startAt, clock.Time())
	}

	if s.paused.Load() {
		return true
	}

	alive := s.src.Process(dst, clock)
	if c := s.chain.Load(); c != nil {
		c.Process(dst, clock)
	}
	s.gain.Process(dst, clock)

	frames := len(dst) / clock.Channels
	v.elapsed += float64(frames) / float64(clock.Rate)
	storeFloat(&s.elapsed, v.elapsed)

	if alive && v.elapsed-v.last >= v.interval {
		v.last = v.elapsed
		v.sink.Publish(s.event(Progress, v.elapsed))
	}

	return alive
}

func loadFloat(u *atomic.Uint64) float64 { return math.Float64frombits(u.Load()) }

func storeFloat(u *atomic.Uint64, v float64) { u.Store(math.Float64bits(v)) }
