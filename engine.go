// SPDX-License-Identifier: EPL-2.0

package vocalengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/adaptive"
	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/cache"
	"github.com/ik5/vocalengine/config"
	"github.com/ik5/vocalengine/events"
	"github.com/ik5/vocalengine/formats"
	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/ingest"
	"github.com/ik5/vocalengine/mixer"
	"github.com/ik5/vocalengine/playback"
	"github.com/ik5/vocalengine/recorder"
)

// IngestPath is where ServeIngest mounts the metrics WebSocket.
const IngestPath = "/metrics"

// Engine ties the components together around one audio graph and one
// buffer cache. Its methods are safe for concurrent use.
type Engine struct {
	cfg      config.Config
	log      logrus.FieldLogger
	registry *audio.Registry

	bus      *events.Bus
	graph    *graph.Engine
	cache    *cache.Cache
	governor *cache.Governor
	recorder *recorder.Controller
	playback *playback.Manager
	mixer    *mixer.Mixer
	adaptive *adaptive.Controller

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	bound  playback.SessionID
	hasBnd bool
	closed bool
}

// New builds an engine from cfg. The output device is not opened until the
// first playback.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = cfg.Logger()
	}
	if o.registry == nil {
		o.registry = formats.NewRegistry()
	}
	if o.fetcher == nil {
		o.fetcher = cache.NewRouter(nil, cfg.FileRoot)
	}
	if o.encoder == nil {
		o.encoder = recorder.PCMEncoder{}
	}

	g, err := graph.New(cfg.Graph, o.output, o.log.WithField("component", "graph"))
	if err != nil {
		return nil, fmt.Errorf("creating audio graph: %w", err)
	}

	bus := events.NewBus()
	c := cache.New(cfg.Cache, o.fetcher, o.registry, cfg.Graph.SampleRate, bus, o.log.WithField("component", "cache"))

	gov := cache.NewGovernor(c, o.heap, bus, o.log.WithField("component", "governor"))
	gov.OnPressure = g.NotifyMemoryPressure
	g.OnMemoryPressure(func() { c.TrimForPressure() })

	e := &Engine{
		cfg:      cfg,
		log:      o.log,
		registry: o.registry,
		bus:      bus,
		graph:    g,
		cache:    c,
		governor: gov,
		recorder: recorder.New(cfg.Recorder, o.capture, o.encoder, func() *graph.Analyser {
			return graph.NewAnalyser(graph.DefaultAnalyserSize)
		}, bus, o.log.WithField("component", "recorder")),
		playback: playback.New(g, c, bus, o.log.WithField("component", "playback")),
		mixer:    mixer.New(cfg.Mixer, bus, o.log.WithField("component", "mixer")),
		adaptive: adaptive.New(cfg.Adaptive, bus, o.log.WithField("component", "adaptive")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	ended := bus.Subscribe(events.DefaultBufferSize, events.TopicPlayback)
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		gov.Run(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.unbindLoop(ended)
	}()

	e.log.WithFields(logrus.Fields{
		"function":    "New",
		"sample_rate": cfg.Graph.SampleRate,
		"channels":    cfg.Graph.Channels,
		"cache_bytes": c.Config().MaxBytes,
	}).Info("Engine created")

	return e, nil
}

// unbindLoop detaches the adaptive controller once its session ends.
func (e *Engine) unbindLoop(sub *events.Subscription) {
	for ev := range sub.C {
		pe, ok := ev.(playback.Event)
		if !ok || !pe.Kind.Terminal() {
			continue
		}

		e.mu.Lock()
		if e.hasBnd && e.bound == pe.ID {
			e.adaptive.Detach()
			e.hasBnd = false
		}
		e.mu.Unlock()
	}
}

func (e *Engine) Config() config.Config          { return e.cfg }
func (e *Engine) Graph() *graph.Engine           { return e.graph }
func (e *Engine) Cache() *cache.Cache            { return e.cache }
func (e *Engine) Registry() *audio.Registry      { return e.registry }
func (e *Engine) Playback() *playback.Manager    { return e.playback }
func (e *Engine) Adaptive() *adaptive.Controller { return e.adaptive }

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	return nil
}

// Events subscribes to every component event. Call the returned function to
// unsubscribe; a slow reader loses events rather than stalling the engine.
func (e *Engine) Events(topics ...events.Topic) (<-chan events.Event, func()) {
	sub := e.bus.Subscribe(events.DefaultBufferSize, topics...)

	return sub.C, func() { e.bus.Unsubscribe(sub) }
}

// StartRecording opens the microphone and begins a take.
func (e *Engine) StartRecording(ctx context.Context, opts recorder.Options) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	return e.recorder.Start(ctx, opts)
}

func (e *Engine) PauseRecording() error  { return e.recorder.Pause() }
func (e *Engine) ResumeRecording() error { return e.recorder.Resume() }

// StopRecording finalizes the take. The microphone is released even when
// encoding fails.
func (e *Engine) StopRecording() (*recorder.Result, error) {
	return e.recorder.Stop()
}

func (e *Engine) RecordingState() recorder.State { return e.recorder.State() }

// LoadAudio decodes id through the cache, attaching to an in-flight fetch
// when there is one.
func (e *Engine) LoadAudio(ctx context.Context, id string, onProgress cache.Progress) (*cache.CachedBuffer, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	return e.cache.Load(ctx, id, onProgress)
}

// CancelLoad aborts the fetch of id and reports whether one was running.
func (e *Engine) CancelLoad(id string) bool {
	return e.cache.Cancel(id)
}

// Target selects what Play plays.
type Target struct {
	buf    *audio.Buffer
	source string
}

// BufferTarget plays a caller-owned buffer.
func BufferTarget(b *audio.Buffer) Target { return Target{buf: b} }

// SourceTarget plays id through the cache. The buffer stays pinned while the
// session runs.
func SourceTarget(id string) Target { return Target{source: id} }

// Play starts a playback session. A zero ProgressInterval takes the
// configured one.
func (e *Engine) Play(ctx context.Context, t Target, opts playback.Options) (playback.SessionID, error) {
	if err := e.checkOpen(); err != nil {
		return playback.SessionID{}, err
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = e.cfg.ProgressInterval
	}

	switch {
	case t.buf != nil:
		return e.playback.PlayBuffer(ctx, t.buf, opts)
	case t.source != "":
		return e.playback.PlaySource(ctx, t.source, opts)
	}

	return playback.SessionID{}, ErrNoTarget
}

func (e *Engine) Pause(id playback.SessionID) error  { return e.playback.Pause(id) }
func (e *Engine) Resume(id playback.SessionID) error { return e.playback.Resume(id) }

func (e *Engine) StopPlayback(id playback.SessionID) error {
	return e.playback.Stop(id)
}

func (e *Engine) SetVolume(id playback.SessionID, v float64) error {
	return e.playback.SetVolume(id, v)
}

// Mix renders vocal against instrumental offline.
func (e *Engine) Mix(ctx context.Context, vocal, instrumental *audio.Buffer, c mixer.Config) (*mixer.Mixdown, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	return e.mixer.Mix(ctx, vocal, instrumental, c)
}

// MixRecording decodes a finished take and mixes it against instrumentalID,
// which is loaded through the cache and pinned for the duration of the mix.
func (e *Engine) MixRecording(ctx context.Context, take *recorder.Result, instrumentalID string, c mixer.Config) (*mixer.Mixdown, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if take == nil || len(take.Blob) == 0 {
		return nil, fmt.Errorf("%w: empty recording", ErrInvalidMixInput)
	}

	vocal, _, err := Decode(ctx, e.registry, take.Blob, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: vocal: %w", ErrInvalidMixInput, err)
	}

	lease, err := e.cache.Acquire(ctx, instrumentalID, nil)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return e.mixer.Mix(ctx, vocal, lease.Buffer().Buffer, c)
}

// AnalysisPCM decodes a take as mono 16-bit PCM at rate for an external
// pitch analyser.
func (e *Engine) AnalysisPCM(ctx context.Context, take *recorder.Result, rate int) ([]int16, error) {
	if take == nil || len(take.Blob) == 0 {
		return nil, fmt.Errorf("%w: empty recording", ErrUnknownFormat)
	}

	src, _, err := open(e.registry, take.Blob)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return ResampleToMono16(ctx, src, rate)
}

// Upload persists a mixdown through p and logs the outcome.
func (e *Engine) Upload(ctx context.Context, p Persister, m *mixer.Mixdown, meta Metadata) (string, error) {
	uri, err := Upload(ctx, p, m, meta)

	log := e.log.WithFields(logrus.Fields{
		"function": "Upload",
		"title":    meta.Title,
	})
	if err != nil {
		log.WithError(err).Error("Upload failed")
		return "", err
	}
	log.WithField("uri", uri).Info("Mixdown uploaded")

	return uri, nil
}

// BindAdaptation points the adaptive controller at session id. The session's
// effect chain is rebuilt with a pitch shifter and reverb so every
// adjustment has a node to drive.
func (e *Engine) BindAdaptation(id playback.SessionID) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	s, err := e.playback.Session(id)
	if err != nil {
		return err
	}

	t, err := adaptive.NewSessionTarget(s, e.adaptive.Config().MaxReverbWet, e.adaptive.State())
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.bound, e.hasBnd = id, true
	e.adaptive.Attach(t)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"function": "BindAdaptation",
		"session":  id.String(),
	}).Info("Adaptation bound to session")

	return nil
}

// CheckMemory polls the heap once outside the governor's schedule and
// reports whether pressure was signalled.
func (e *Engine) CheckMemory() bool { return e.governor.Check() }

// UnbindAdaptation detaches the controller; its state is kept.
func (e *Engine) UnbindAdaptation() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.adaptive.Detach()
	e.hasBnd = false
}

// AdaptToPerformance folds one metrics sample into the controller.
func (e *Engine) AdaptToPerformance(s adaptive.Sample) adaptive.State {
	return e.adaptive.Adapt(s)
}

func (e *Engine) CurrentAdjustments() adaptive.State { return e.adaptive.State() }
func (e *Engine) ResetAdaptation()                   { e.adaptive.Reset() }
func (e *Engine) SetAdaptationEnabled(enabled bool)  { e.adaptive.SetEnabled(enabled) }

// IngestHandler returns a WebSocket handler feeding AdaptToPerformance.
func (e *Engine) IngestHandler(accept *websocket.AcceptOptions) *ingest.Handler {
	return ingest.NewHandler(e.AdaptToPerformance, e.CurrentAdjustments, accept, e.log.WithField("component", "ingest"))
}

// ServeIngest serves IngestHandler on the configured address until ctx ends.
func (e *Engine) ServeIngest(ctx context.Context, accept *websocket.AcceptOptions) error {
	return ingest.ListenAndServe(ctx, e.cfg.IngestAddr, IngestPath, e.IngestHandler(accept))
}

// Shutdown stops every session and take, closes the output device and
// drops the cache. Calling it twice is safe.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.adaptive.Detach()
	e.hasBnd = false
	e.mu.Unlock()

	var errs []error

	if st := e.recorder.State(); st == recorder.StateRecording || st == recorder.StatePaused {
		if _, err := e.recorder.Stop(); err != nil && !errors.Is(err, recorder.ErrInvalidState) {
			errs = append(errs, fmt.Errorf("stopping recording: %w", err))
		}
	}

	e.playback.StopAll()
	if err := e.graph.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audio graph: %w", err))
	}
	e.playback.Wait()

	e.cancel()
	e.cache.Close()
	e.bus.Close()
	e.wg.Wait()

	e.log.WithField("function", "Shutdown").Info("Engine shut down")

	return errors.Join(errs...)
}
