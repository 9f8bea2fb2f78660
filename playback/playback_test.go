// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/cache"
	"github.com/ik5/vocalengine/events"
	"github.com/ik5/vocalengine/formats/wav"
	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/internal/audiotest"
)

const testRate = 48000

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

type rig struct {
	engine *graph.Engine
	out    *audiotest.ManualOutput
	bus    *events.Bus
	sub    *events.Subscription
	m      *Manager
}

func newRig(t *testing.T, loader Loader) *rig {
	t.Helper()

	cfg := graph.Config{SampleRate: testRate, Channels: 2, BlockSize: 512}
	out := audiotest.NewManualOutput(cfg.Channels)
	e, err := graph.New(cfg, func(graph.OutputConfig) (graph.Device, error) { return out, nil }, nullLogger())
	require.NoError(t, err)

	bus := events.NewBus()
	r := &rig{
		engine: e,
		out:    out,
		bus:    bus,
		sub:    bus.Subscribe(4096, events.TopicPlayback),
		m:      New(e, loader, bus, nullLogger()),
	}
	t.Cleanup(func() {
		_ = e.Close()
		r.m.Wait()
		bus.Close()
	})

	return r
}

func (r *rig) pump(seconds float64) {
	r.out.PumpSeconds(testRate, seconds, 512)
}

// drain collects the playback events published so far.
func (r *rig) drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.sub.C:
			out = append(out, e.(Event))
		default:
			return out
		}
	}
}

func TestSessionEndsOnce(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Sine(testRate, 2, 2.0, 440, 0.5)

	id, err := r.m.PlayBuffer(t.Context(), buf, Options{})
	require.NoError(t, err)

	r.pump(2.5)
	r.m.Wait()

	evs := r.drain()
	require.NotEmpty(t, evs)

	assert.Equal(t, Started, evs[0].Kind)
	assert.Zero(t, evs[0].Fraction)

	var progress, ended int
	for i, e := range evs {
		assert.Equal(t, id, e.ID)
		assert.InDelta(t, 2.0, e.Duration, 1e-9)
		assert.GreaterOrEqual(t, e.Fraction, 0.0)
		assert.LessOrEqual(t, e.Fraction, 1.0)
		switch e.Kind {
		case Started:
			assert.Zero(t, i)
		case Progress:
			progress++
			assert.Zero(t, ended, "progress after the terminal event")
		case Ended:
			ended++
			assert.Equal(t, len(evs)-1, i)
			assert.InDelta(t, 2.0, e.Elapsed, 0.02)
			assert.InDelta(t, 1.0, e.Fraction, 0.01)
		case Stopped, Failed:
			t.Fatalf("unexpected %s", e.Kind)
		}
	}

	assert.Equal(t, 1, ended)
	assert.GreaterOrEqual(t, progress, 18)
	assert.LessOrEqual(t, progress, 20)

	assert.ErrorIs(t, r.m.Pause(id), ErrUnknownSession)
	assert.Zero(t, r.m.Len())
	assert.Zero(t, r.engine.Connections())
}

func TestPlayReportsFailure(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Constant(testRate, 2, 0.5, 0.1)

	_, err := r.m.PlayBuffer(t.Context(), buf, Options{Effects: graph.EffectKind(99)})
	require.ErrorIs(t, err, graph.ErrUnknownEffect)

	evs := r.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, Failed, evs[0].Kind)
	assert.True(t, evs[0].Kind.Terminal())
	assert.ErrorIs(t, evs[0].Err, graph.ErrUnknownEffect)
	assert.InDelta(t, 0.5, evs[0].Duration, 1e-9)
	assert.Zero(t, r.m.Len())
	assert.Zero(t, r.engine.Connections())
}

func TestUnknownSessionLeavesOthersAlone(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Constant(testRate, 2, 0.5, 0.25)

	a, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true})
	require.NoError(t, err)
	b, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true})
	require.NoError(t, err)

	require.NoError(t, r.m.Stop(a))
	assert.ErrorIs(t, r.m.Pause(a), ErrUnknownSession)
	assert.ErrorIs(t, r.m.Stop(a), ErrUnknownSession)
	assert.ErrorIs(t, r.m.SetVolume(a, 0.5), ErrUnknownSession)
	assert.ErrorIs(t, r.m.Pause(SessionID{Index: 99, Generation: 1}), ErrUnknownSession)
	assert.ErrorIs(t, r.m.Pause(SessionID{}), ErrUnknownSession)

	// The freed slot is reused with a new generation.
	c, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true})
	require.NoError(t, err)
	assert.Equal(t, a.Index, c.Index)
	assert.NotEqual(t, a.Generation, c.Generation)
	assert.ErrorIs(t, r.m.Resume(a), ErrUnknownSession)

	sb, err := r.m.Session(b)
	require.NoError(t, err)
	assert.False(t, sb.Paused())
	assert.Equal(t, 2, r.m.Len())

	out := r.out.Pump(512)
	assert.NotZero(t, out[0])
}

func TestPauseFreezesPlayhead(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Sine(testRate, 1, 1.0, 220, 0.5)

	id, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true})
	require.NoError(t, err)
	s, err := r.m.Session(id)
	require.NoError(t, err)

	r.pump(0.2)
	require.NoError(t, r.m.Pause(id))
	pos := s.Position()
	elapsed := s.Elapsed()

	r.pump(0.2)
	assert.Equal(t, pos, s.Position())
	assert.Equal(t, elapsed, s.Elapsed())

	require.NoError(t, r.m.Resume(id))
	r.pump(0.2)
	assert.Greater(t, s.Position(), pos)
	assert.InDelta(t, 0.4, s.Elapsed(), 0.02)
}

func TestSetVolume(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Constant(testRate, 2, 1.0, 0.5)

	id, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true, Volume: 0.8})
	require.NoError(t, err)
	s, err := r.m.Session(id)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, s.Gain().Value(), 1e-9)

	assert.ErrorIs(t, r.m.SetVolume(id, -1), ErrInvalidVolume)
	assert.ErrorIs(t, r.m.SetVolume(id, graph.MaxGain+1), ErrInvalidVolume)

	require.NoError(t, r.m.SetVolume(id, 0.25))
	assert.InDelta(t, 0.25, s.Volume(), 1e-9)

	r.pump(0.1)
	assert.InDelta(t, 0.25, s.Gain().Value(), 1e-6)

	require.NoError(t, s.SetVolumeScale(0.5, 0))
	r.pump(0.05)
	assert.InDelta(t, 0.125, s.Gain().Value(), 1e-6)
}

func TestPlaySourcePinsBuffer(t *testing.T) {
	t.Parallel()

	payload := audiotest.WAV(audiotest.Sine(testRate, 2, 0.5, 440, 0.5))
	fetch := cache.FetcherFunc(func(_ context.Context, id string, offset, length int64) (cache.Range, error) {
		if id != "backing.wav" {
			return cache.Range{}, errors.New("not found")
		}
		total := int64(len(payload))
		if offset >= total {
			return cache.Range{Total: total}, nil
		}
		return cache.Range{Data: payload[offset:min(offset+length, total)], Total: total}, nil
	})

	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	c := cache.New(cache.Config{}, fetch, reg, testRate, nil, nullLogger())

	r := newRig(t, c)

	id, err := r.m.PlaySource(t.Context(), "backing.wav", Options{Loop: true})
	require.NoError(t, err)
	assert.True(t, c.Pinned("backing.wav"))

	s, err := r.m.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "backing.wav", s.SourceID())

	r.pump(0.1)
	require.NoError(t, r.m.Stop(id))
	assert.False(t, c.Pinned("backing.wav"))

	_, err = r.m.PlaySource(t.Context(), "missing.wav", Options{})
	assert.ErrorIs(t, err, cache.ErrAudioLoadFailed)

	m := New(r.engine, nil, nil, nullLogger())
	_, err = m.PlaySource(t.Context(), "backing.wav", Options{})
	assert.ErrorIs(t, err, ErrNoLoader)
}

func TestPlayWithoutOutput(t *testing.T) {
	t.Parallel()

	e, err := graph.New(graph.DefaultConfig(), nil, nullLogger())
	require.NoError(t, err)
	m := New(e, nil, nil, nullLogger())

	_, err = m.PlayBuffer(t.Context(), audiotest.Constant(testRate, 1, 0.1, 0.1), Options{})
	assert.ErrorIs(t, err, graph.ErrUnsupportedPlatform)

	_, err = m.PlayBuffer(t.Context(), nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidBuffer)
	assert.Zero(t, m.Len())
}

func TestEngineCloseStopsSessions(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Constant(testRate, 2, 0.5, 0.1)

	for range 3 {
		_, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true})
		require.NoError(t, err)
	}
	r.pump(0.05)

	require.NoError(t, r.engine.Close())
	r.m.Wait()

	var stopped int
	for _, e := range r.drain() {
		if e.Kind == Stopped {
			stopped++
		}
		assert.NotEqual(t, Ended, e.Kind)
	}
	assert.Equal(t, 3, stopped)
	assert.Zero(t, r.m.Len())
}

func TestStopAll(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Constant(testRate, 2, 0.5, 0.1)

	for range 2 {
		_, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true})
		require.NoError(t, err)
	}

	r.m.StopAll()
	assert.Zero(t, r.m.Len())
	assert.Zero(t, r.engine.Connections())
}

func TestRebuildEffects(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	buf := audiotest.Sine(testRate, 2, 1.0, 330, 0.5)

	id, err := r.m.PlayBuffer(t.Context(), buf, Options{Loop: true})
	require.NoError(t, err)
	s, err := r.m.Session(id)
	require.NoError(t, err)

	old := s.Chain()
	assert.Equal(t, graph.EffectNone, old.Kind())

	require.NoError(t, s.RebuildEffects(graph.EffectPitchReverb, graph.EffectParams{Semitones: 2, ReverbWet: 0.3}))
	assert.True(t, old.Disposed())
	assert.Equal(t, graph.EffectPitchReverb, s.Chain().Kind())
	assert.NotNil(t, s.Chain().Pitch())

	r.pump(0.1)

	current := s.Chain()
	require.NoError(t, r.m.Stop(id))
	assert.True(t, current.Disposed())
	assert.ErrorIs(t, s.RebuildEffects(graph.EffectReverb, graph.EffectParams{}), ErrUnknownSession)
}

func TestArenaGenerations(t *testing.T) {
	t.Parallel()

	var a arena
	s1, s2 := &Session{}, &Session{}

	id1 := a.insert(s1)
	assert.Equal(t, SessionID{Index: 0, Generation: 1}, id1)

	assert.True(t, a.remove(id1))
	assert.False(t, a.remove(id1))

	id2 := a.insert(s2)
	assert.Equal(t, SessionID{Index: 0, Generation: 2}, id2)

	_, ok := a.get(id1)
	assert.False(t, ok)
	got, ok := a.get(id2)
	assert.True(t, ok)
	assert.Same(t, s2, got)
	assert.Equal(t, 1, a.len())
	assert.Equal(t, "0.2", id2.String())
}
