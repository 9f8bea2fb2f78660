// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ik5/vocalengine/audio"
	"github.com/sirupsen/logrus"
)

// Engine is the real-time audio graph: connected voices are summed and
// pushed through master gain, compressor and analyser into the output
// device. The device is opened lazily by EnsureReady.
type Engine struct {
	cfg     Config
	factory OutputFactory
	log     logrus.FieldLogger

	mu      sync.Mutex
	ready   bool
	closed  bool
	initErr error
	device  Device

	gmu     sync.Mutex
	conns   []*Connection
	nextID  uint64
	mix     []float32
	scratch []float32
	pending []float32
	pendPos int

	frames atomic.Int64

	master     *Gain
	compressor *Compressor
	analyser   *Analyser

	irOnce sync.Once
	ir     *audio.Buffer

	hookMu sync.Mutex
	hooks  []func()
}

// New returns an idle engine. A nil factory means the platform has no audio
// output; EnsureReady will fail with ErrUnsupportedPlatform.
func New(cfg Config, out OutputFactory, log logrus.FieldLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	e := &Engine{
		cfg:     cfg,
		factory: out,
		log:     log,
		mix:     make([]float32, cfg.BlockSize*cfg.Channels),
		scratch: make([]float32, cfg.BlockSize*cfg.Channels),
	}
	e.pending = e.mix[:0]

	e.master = NewGain(e, 1)
	e.compressor = NewCompressor(e, DefaultCompressorOptions())
	e.analyser = NewAnalyser(DefaultAnalyserSize)

	return e, nil
}

func (e *Engine) SampleRate() int { return e.cfg.SampleRate }
func (e *Engine) Channels() int   { return e.cfg.Channels }
func (e *Engine) BlockSize() int  { return e.cfg.BlockSize }
func (e *Engine) Config() Config  { return e.cfg }

// Now is the audio clock: frames rendered so far divided by the rate.
func (e *Engine) Now() float64 {
	return float64(e.frames.Load()) / float64(e.cfg.SampleRate)
}

func (e *Engine) Master() *Gain              { return e.master }
func (e *Engine) Compressor() *Compressor    { return e.compressor }
func (e *Engine) Analyser() *Analyser        { return e.analyser }
func (e *Engine) Logger() logrus.FieldLogger { return e.log }

// EnsureReady opens and starts the output device on first use. Later calls
// return without touching the device again. A device failure is reported as
// ErrUnsupportedPlatform and sticks.
func (e *Engine) EnsureReady(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.closed:
		return ErrClosed
	case e.ready:
		return nil
	case e.initErr != nil:
		return e.initErr
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w", err)
	}

	if e.factory == nil {
		e.initErr = ErrUnsupportedPlatform
		e.log.WithFields(logrus.Fields{
			"function": "EnsureReady",
		}).Warn("No audio output available")
		return e.initErr
	}

	dev, err := e.factory(OutputConfig{
		SampleRate:   e.cfg.SampleRate,
		Channels:     e.cfg.Channels,
		PeriodFrames: e.cfg.BlockSize,
	})
	if err != nil {
		e.initErr = classifyDeviceError(err)
		e.log.WithFields(logrus.Fields{
			"function": "EnsureReady",
			"error":    err.Error(),
		}).Error("Failed to open output device")
		return e.initErr
	}

	if err := dev.Start(e.render); err != nil {
		_ = dev.Close()
		e.initErr = classifyDeviceError(err)
		e.log.WithFields(logrus.Fields{
			"function": "EnsureReady",
			"error":    err.Error(),
		}).Error("Failed to start output device")
		return e.initErr
	}

	e.device = dev
	e.ready = true

	e.log.WithFields(logrus.Fields{
		"function":    "EnsureReady",
		"sample_rate": e.cfg.SampleRate,
		"channels":    e.cfg.Channels,
		"block_size":  e.cfg.BlockSize,
	}).Info("Audio graph started")

	return nil
}

func classifyDeviceError(err error) error {
	if errors.Is(err, ErrUnsupportedPlatform) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrUnsupportedPlatform, err)
}

// Ready reports whether the device is running.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ready && !e.closed
}

func (e *Engine) checkReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.closed:
		return ErrClosed
	case e.initErr != nil:
		return e.initErr
	case !e.ready:
		return ErrNotReady
	}

	return nil
}

// Connect attaches v to the master bus.
func (e *Engine) Connect(v Voice) (*Connection, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	e.gmu.Lock()
	defer e.gmu.Unlock()

	e.nextID++
	c := newConnection(e.nextID, v, e.disconnect)
	e.conns = append(e.conns, c)

	return c, nil
}

func (e *Engine) disconnect(c *Connection) {
	e.gmu.Lock()
	defer e.gmu.Unlock()

	e.removeLocked(c)
}

func (e *Engine) removeLocked(c *Connection) {
	for i, other := range e.conns {
		if other == c {
			e.conns = append(e.conns[:i], e.conns[i+1:]...)
			return
		}
	}
}

// Connections is the number of attached voices.
func (e *Engine) Connections() int {
	e.gmu.Lock()
	defer e.gmu.Unlock()

	return len(e.conns)
}

// BuildEffectChain returns a chain for this engine. Reverb kinds share the
// engine's generated impulse response.
func (e *Engine) BuildEffectChain(kind EffectKind, p EffectParams) (*Chain, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	var ir *audio.Buffer
	if kind.hasReverb() {
		ir = e.ImpulseResponse()
	}

	return NewChain(e, kind, p, ir)
}

// ImpulseResponse is generated once per engine.
func (e *Engine) ImpulseResponse() *audio.Buffer {
	e.irOnce.Do(func() {
		e.ir = GenerateImpulse(e.cfg.SampleRate, e.cfg.Channels,
			DefaultImpulseSeconds, DefaultImpulseDecay, DefaultImpulseSeed)
	})

	return e.ir
}

// ApplyRamp is ApplyRamp bound to this engine's clock and block size.
func (e *Engine) ApplyRamp(p *Param, target, seconds float64) error {
	return ApplyRamp(e, p, target, seconds)
}

// OnMemoryPressure registers fn to run on NotifyMemoryPressure.
func (e *Engine) OnMemoryPressure(fn func()) {
	e.hookMu.Lock()
	defer e.hookMu.Unlock()

	e.hooks = append(e.hooks, fn)
}

// NotifyMemoryPressure runs every registered hook in registration order.
func (e *Engine) NotifyMemoryPressure() {
	e.hookMu.Lock()
	hooks := append([]func(){}, e.hooks...)
	e.hookMu.Unlock()

	e.log.WithFields(logrus.Fields{
		"function": "NotifyMemoryPressure",
		"hooks":    len(hooks),
	}).Warn("Memory pressure signalled")

	for _, fn := range hooks {
		fn()
	}
}

// render is the device callback.
func (e *Engine) render(out []float32) {
	var released []*Connection

	e.gmu.Lock()
	for n := 0; n < len(out); {
		if e.pendPos >= len(e.pending) {
			released = append(released, e.renderBlock()...)
			e.pending = e.mix
			e.pendPos = 0
		}

		c := copy(out[n:], e.pending[e.pendPos:])
		n += c
		e.pendPos += c
	}
	e.gmu.Unlock()

	for _, c := range released {
		c.release()
	}
}

// renderBlock renders one block into e.mix and returns the connections whose
// voices finished. Caller holds gmu.
func (e *Engine) renderBlock() []*Connection {
	clock := Clock{Frame: e.frames.Load(), Rate: e.cfg.SampleRate, Channels: e.cfg.Channels}
	clear(e.mix)

	var finished []*Connection
	for _, c := range e.conns {
		clear(e.scratch)
		alive := c.voice.Process(e.scratch, clock)
		for i, s := range e.scratch {
			e.mix[i] += s
		}
		if !alive {
			c.markFinished()
			finished = append(finished, c)
		}
	}

	for _, c := range finished {
		e.removeLocked(c)
	}

	e.master.Process(e.mix, clock)
	e.compressor.Process(e.mix, clock)
	e.analyser.Process(e.mix, clock)

	for i, s := range e.mix {
		if math.IsNaN(float64(s)) {
			e.mix[i] = 0
		}
	}

	e.frames.Add(int64(e.cfg.BlockSize))

	return finished
}

// Close disposes every connection and closes the device. Later operations
// fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	dev := e.device
	e.device = nil
	e.ready = false
	e.mu.Unlock()

	e.gmu.Lock()
	conns := e.conns
	e.conns = nil
	e.gmu.Unlock()

	for _, c := range conns {
		c.release()
	}

	e.log.WithFields(logrus.Fields{
		"function":    "Close",
		"connections": len(conns),
	}).Info("Audio graph closed")

	if dev != nil {
		if err := dev.Close(); err != nil {
			return fmt.Errorf("closing output device: %w", err)
		}
	}

	return nil
}
