// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/cache"
	"github.com/ik5/vocalengine/events"
	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/utils"
)

// Loader pins a cached buffer for the life of a session. *cache.Cache
// implements it.
type Loader interface {
	Acquire(ctx context.Context, sourceID string, onProgress cache.Progress) (*cache.Lease, error)
}

// Manager owns the sessions of one engine.
type Manager struct {
	engine *graph.Engine
	loader Loader
	sink   events.Sink
	log    logrus.FieldLogger

	mu    sync.Mutex
	arena arena
	wg    sync.WaitGroup
}

func New(engine *graph.Engine, loader Loader, sink events.Sink, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Manager{
		engine: engine,
		loader: loader,
		sink:   events.OrDiscard(sink),
		log:    log,
	}
}

// PlayBuffer starts a session for an externally owned buffer.
func (m *Manager) PlayBuffer(ctx context.Context, buf *audio.Buffer, opts Options) (SessionID, error) {
	return m.play(ctx, buf, "", nil, opts)
}

// PlaySource loads id through the loader and plays it. The buffer stays
// pinned in the cache until the session ends.
func (m *Manager) PlaySource(ctx context.Context, id string, opts Options) (SessionID, error) {
	if m.loader == nil {
		return SessionID{}, ErrNoLoader
	}

	if err := m.engine.EnsureReady(ctx); err != nil {
		return SessionID{}, err
	}

	lease, err := m.loader.Acquire(ctx, id, nil)
	if err != nil {
		return SessionID{}, err
	}

	sid, err := m.play(ctx, lease.Buffer().Buffer, id, lease, opts)
	if err != nil {
		lease.Release()
		return SessionID{}, err
	}

	return sid, nil
}

func (m *Manager) play(ctx context.Context, buf *audio.Buffer, sourceID string, lease Releaser, opts Options) (SessionID, error) {
	if buf == nil {
		return SessionID{}, ErrInvalidBuffer
	}
	if err := buf.Validate(); err != nil || buf.Frames() == 0 {
		return SessionID{}, fmt.Errorf("%w: %v", ErrInvalidBuffer, err)
	}

	if err := m.engine.EnsureReady(ctx); err != nil {
		return SessionID{}, err
	}

	s := &Session{
		sourceID: sourceID,
		engine:   m.engine,
		buf:      buf,
		src: graph.NewBufferSource(m.engine, buf, graph.SourceOptions{
			Loop:  opts.Loop,
			Start: opts.StartTime,
			End:   opts.EndTime,
			Rate:  opts.PlaybackRate,
		}),
		gain:  graph.NewGain(m.engine, opts.volume()),
		lease: lease,
	}
	storeFloat(&s.baseVolume, opts.volume())
	storeFloat(&s.scale, 1)

	// Stop may look the session up as soon as it is in the arena; it waits
	// on s.mu until the session is connected or has failed. Started goes out
	// before Connect so it precedes every Progress event from the render
	// thread.
	s.mu.Lock()
	m.mu.Lock()
	s.id = m.arena.insert(s)
	m.mu.Unlock()

	chain, err := m.engine.BuildEffectChain(opts.Effects, opts.EffectParams)
	if err != nil {
		m.fail(s, err)
		s.mu.Unlock()

		return SessionID{}, err
	}
	s.chain.Store(chain)

	v := &voice{s: s, sink: m.sink, interval: opts.interval(m.engine.Config())}

	m.sink.Publish(s.event(Started, 0))
	conn, err := m.engine.Connect(v)
	if err != nil {
		m.fail(s, err)
		s.mu.Unlock()
		chain.Dispose()

		return SessionID{}, err
	}

	s.conn = conn
	s.mu.Unlock()

	m.wg.Add(1)
	go m.watch(s, conn)

	m.log.WithFields(logrus.Fields{
		"function":   "Play",
		"session_id": s.id.String(),
		"source_id":  sourceID,
		"loop":       opts.Loop,
		"effects":    opts.Effects.String(),
	}).Debug("Playback started")

	return s.id, nil
}

// watch finishes the session once its connection is released, whether it
// ran out, was stopped or the engine closed.
func (m *Manager) watch(s *Session, conn *graph.Connection) {
	defer m.wg.Done()

	<-conn.Done()

	kind := Stopped
	if conn.Finished() && !s.stopped.Load() {
		kind = Ended
	}

	m.finish(s, kind)
}

func (m *Manager) finish(s *Session, kind Kind) {
	m.mu.Lock()
	m.arena.remove(s.id)
	m.mu.Unlock()

	if !s.close() {
		return
	}

	m.log.WithFields(logrus.Fields{
		"function":   "finish",
		"session_id": s.id.String(),
		"kind":       kind.String(),
	}).Debug("Playback finished")

	m.sink.Publish(s.event(kind, s.Elapsed()))
}

// fail drops a session that never reached the graph and reports why. The
// caller holds s.mu and keeps ownership of the lease and the chain.
func (m *Manager) fail(s *Session, err error) {
	m.mu.Lock()
	m.arena.remove(s.id)
	m.mu.Unlock()

	first := false
	s.once.Do(func() {
		s.closed = true
		first = true
	})
	if !first {
		return
	}

	m.log.WithFields(logrus.Fields{
		"function":   "Play",
		"session_id": s.id.String(),
		"source_id":  s.sourceID,
	}).WithError(err).Warn("Playback failed to start")

	ev := s.event(Failed, 0)
	ev.Err = err
	m.sink.Publish(ev)
}

func (m *Manager) lookup(id SessionID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.arena.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	return s, nil
}

// Session returns the live session for id.
func (m *Manager) Session(id SessionID) (*Session, error) {
	return m.lookup(id)
}

// Pause silences the session and freezes its playhead.
func (m *Manager) Pause(id SessionID) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.paused.Store(true)

	return nil
}

func (m *Manager) Resume(id SessionID) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.paused.Store(false)

	return nil
}

// Stop disconnects the session. The id is invalid once Stop returns.
func (m *Manager) Stop(id SessionID) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	m.stop(s)

	return nil
}

func (m *Manager) stop(s *Session) {
	s.stopped.Store(true)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Dispose()
	}

	m.finish(s, Stopped)
}

// SetVolume ramps the session gain to v over VolumeRamp.
func (m *Manager) SetVolume(id SessionID, v float64) error {
	if !utils.Finite(v) || v < 0 || v > graph.MaxGain {
		return fmt.Errorf("%w: %v", ErrInvalidVolume, v)
	}

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	return s.setVolume(v, VolumeRamp)
}

// StopAll stops every session.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := m.arena.all()
	m.mu.Unlock()

	for _, s := range sessions {
		m.stop(s)
	}

	m.log.WithFields(logrus.Fields{
		"function": "StopAll",
		"sessions": len(sessions),
	}).Debug("Stopped all sessions")
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.arena.len()
}

// Wait blocks until every session watcher has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
