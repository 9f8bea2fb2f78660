// SPDX-License-Identifier: EPL-2.0

package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/events"
	"github.com/ik5/vocalengine/graph"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateStopped
	// StateStarting covers the device request made by Start.
	StateStarting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	}

	return "unknown"
}

// Result is a finished take.
type Result struct {
	ID       string
	Blob     []byte
	MIMEType string
	// Duration is the length of the captured audio.
	Duration time.Duration
	// Elapsed is the wall-clock time spent recording, pauses excluded.
	Elapsed    time.Duration
	Waveform   []float32
	Peaks      []float32
	SampleRate int
	Channels   int
}

// Controller owns one capture session at a time. Its methods are safe for
// concurrent use.
type Controller struct {
	cfg         Config
	open        Opener
	enc         Encoder
	newAnalyser func() *graph.Analyser
	sink        events.Sink
	log         logrus.FieldLogger
	now         func() time.Time

	mu      sync.Mutex
	state   State
	session *session
}

// New returns an idle controller. A nil enc records WAV; a nil newAnalyser
// uses a default-size analyser per take.
func New(cfg Config, open Opener, enc Encoder, newAnalyser func() *graph.Analyser, sink events.Sink, log logrus.FieldLogger) *Controller {
	if enc == nil {
		enc = PCMEncoder{}
	}
	if newAnalyser == nil {
		newAnalyser = func() *graph.Analyser { return graph.NewAnalyser(graph.DefaultAnalyserSize) }
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Controller{
		cfg:         cfg.withDefaults(),
		open:        open,
		enc:         enc,
		newAnalyser: newAnalyser,
		sink:        events.OrDiscard(sink),
		log:         log,
		now:         time.Now,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Analyser returns the meter of the current take, or nil when idle.
func (c *Controller) Analyser() *graph.Analyser {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}

	return c.session.analyser
}

// Start opens the capture device and begins a take.
func (c *Controller) Start(ctx context.Context, opts Options) error {
	sc, err := opts.resolve(c.cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	if c.open == nil {
		c.mu.Unlock()
		return graph.ErrUnsupportedPlatform
	}
	c.state = StateStarting
	c.mu.Unlock()

	// The device request may wait on the user, so it runs unlocked.
	stream, err := c.open(ctx, sc)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateIdle
		if stream != nil {
			_ = stream.Close()
		}

		c.log.WithFields(logrus.Fields{
			"function": "Start",
			"denied":   errors.Is(err, ErrPermissionDenied),
			"error":    err.Error(),
		}).Warn("Could not open capture stream")

		return fmt.Errorf("open capture: %w", err)
	}

	s := newSession(uuid.NewString(), sc, c.cfg.PeakBufferSize, c.newAnalyser(), c.now())
	s.stream = stream
	c.session = s
	c.state = StateRecording

	if err := stream.Start(func(samples []float32) { c.onData(s, samples) }); err != nil {
		c.session = nil
		c.state = StateIdle
		_ = stream.Stop()
		_ = stream.Close()

		c.sink.Publish(Event{RecordingID: s.id, Kind: Failed, Err: err})
		return fmt.Errorf("start capture: %w", err)
	}

	s.wg.Add(2)
	go c.chunkLoop(s)
	go c.peakLoop(s)

	c.log.WithFields(logrus.Fields{
		"function":     "Start",
		"recording_id": s.id,
		"sample_rate":  sc.SampleRate,
		"channels":     sc.Channels,
	}).Info("Recording started")

	c.sink.Publish(Event{RecordingID: s.id, Kind: Started})

	return nil
}

// Pause drops incoming samples until Resume.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return fmt.Errorf("%w: pause while %s", ErrInvalidState, c.state)
	}

	s := c.session
	s.active += c.now().Sub(s.resumedAt)
	c.state = StatePaused

	c.sink.Publish(Event{RecordingID: s.id, Kind: Paused, Duration: s.duration()})

	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return fmt.Errorf("%w: resume while %s", ErrInvalidState, c.state)
	}

	s := c.session
	s.resumedAt = c.now()
	c.state = StateRecording

	c.sink.Publish(Event{RecordingID: s.id, Kind: Resumed, Duration: s.duration()})

	return nil
}

// Stop ends the take and returns it. The capture stream is stopped and
// closed on every path.
func (c *Controller) Stop() (*Result, error) {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: stop while %s", ErrInvalidState, state)
	}

	s := c.session
	if c.state == StateRecording {
		s.active += c.now().Sub(s.resumedAt)
	}
	c.state = StateStopped
	close(s.quit)
	c.mu.Unlock()

	// The stream goroutine may be waiting on c.mu inside onData, so it is
	// stopped without holding the lock.
	s.wg.Wait()
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	if err := errors.Join(stopErr, closeErr); err != nil {
		c.log.WithFields(logrus.Fields{
			"function":     "Stop",
			"recording_id": s.id,
			"error":        err.Error(),
		}).Warn("Capture stream did not shut down cleanly")
	}

	c.mu.Lock()
	flushErr := c.flushLocked(s)
	c.session = nil
	c.state = StateIdle
	c.mu.Unlock()

	res, err := c.finish(s, flushErr)
	if err != nil {
		c.sink.Publish(Event{RecordingID: s.id, Kind: Failed, Err: err})
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"function":     "Stop",
		"recording_id": s.id,
		"duration":     res.Duration.String(),
		"bytes":        len(res.Blob),
	}).Info("Recording stopped")

	c.sink.Publish(Event{RecordingID: s.id, Kind: Stopped, Duration: res.Duration})

	return res, nil
}

func (c *Controller) finish(s *session, flushErr error) (*Result, error) {
	if flushErr != nil {
		return nil, fmt.Errorf("encode chunk: %w", flushErr)
	}

	blob, err := c.enc.Finalize(s.chunks, s.cfg.SampleRate, s.cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("finalize recording: %w", err)
	}

	return &Result{
		ID:         s.id,
		Blob:       blob,
		MIMEType:   c.enc.MIMEType(),
		Duration:   s.duration(),
		Elapsed:    s.active,
		Waveform:   s.waveform(c.cfg.WaveformPoints),
		Peaks:      s.peaks.ordered(),
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}, nil
}

// onData runs on the capture goroutine.
func (c *Controller) onData(s *session, samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != s || c.state != StateRecording {
		return
	}

	frames := len(samples) / s.cfg.Channels
	samples = samples[:frames*s.cfg.Channels]

	s.pending = append(s.pending, samples...)
	s.frames += int64(frames)
	s.analyser.Write(samples, s.cfg.Channels)
}

func (c *Controller) chunkLoop(s *session) {
	defer s.wg.Done()

	ticker := time.NewTicker(c.cfg.ChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			c.mu.Lock()
			if err := c.flushLocked(s); err != nil {
				c.log.WithFields(logrus.Fields{
					"function":     "chunkLoop",
					"recording_id": s.id,
					"error":        err.Error(),
				}).Error("Chunk encoding failed")
			}
			c.mu.Unlock()
		}
	}
}

func (c *Controller) peakLoop(s *session) {
	defer s.wg.Done()

	ticker := time.NewTicker(c.cfg.PeakInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state == StateRecording {
				s.peaks.push(s.analyser.Peak())
			}
			c.mu.Unlock()
		}
	}
}

// flushLocked encodes pending samples into a chunk. A failed chunk keeps
// its samples pending and the error is kept for Stop.
func (c *Controller) flushLocked(s *session) error {
	if len(s.pending) == 0 {
		return s.encErr
	}

	chunk, err := c.enc.Encode(s.pending)
	if err != nil {
		s.encErr = err
		return err
	}

	s.chunks = append(s.chunks, chunk)
	s.envelope = append(s.envelope, chunkEnvelope(s.pending, s.cfg.Channels, envelopeFrames(s.cfg.SampleRate))...)
	s.pending = s.pending[:0]
	s.encErr = nil

	return nil
}
