// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/events"
	"github.com/ik5/vocalengine/formats/wav"
	"github.com/ik5/vocalengine/graph"
)

// Mixdown is a rendered mix and its canonical WAV encoding.
type Mixdown struct {
	Buffer   *audio.Buffer
	Data     []byte
	MIMEType string
}

func (m *Mixdown) Duration() time.Duration { return m.Buffer.Duration() }

type irKey struct {
	rate, channels int
}

// Mixer is safe for concurrent use; each Mix renders in its own context.
type Mixer struct {
	opts Options
	sink events.Sink
	log  logrus.FieldLogger

	mu  sync.Mutex
	irs map[irKey]*audio.Buffer
}

func New(opts Options, sink events.Sink, log logrus.FieldLogger) *Mixer {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultOptions().BlockSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Mixer{
		opts: opts,
		sink: events.OrDiscard(sink),
		log:  log,
		irs:  make(map[irKey]*audio.Buffer),
	}
}

// Mix renders vocal and instrumental into one buffer as long as the longer
// input.
func (m *Mixer) Mix(ctx context.Context, vocal, instrumental *audio.Buffer, c Config) (*Mixdown, error) {
	start := time.Now()

	out, err := m.mix(ctx, vocal, instrumental, c)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"function": "Mix",
			"error":    err.Error(),
		}).Warn("Mix failed")
		m.sink.Publish(Event{Kind: Failed, Err: err})

		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"function":    "Mix",
		"frames":      out.Buffer.Frames(),
		"channels":    out.Buffer.NumChannels(),
		"sample_rate": out.Buffer.Rate,
		"took":        time.Since(start).String(),
	}).Info("Mix rendered")
	m.sink.Publish(Event{Kind: Complete, Duration: out.Duration(), Bytes: len(out.Data)})

	return out, nil
}

func (m *Mixer) mix(ctx context.Context, vocal, instrumental *audio.Buffer, c Config) (*Mixdown, error) {
	if err := checkInput("vocal", vocal); err != nil {
		return nil, err
	}
	if err := checkInput("instrumental", instrumental); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	rate := m.opts.SampleRate
	if rate <= 0 {
		rate = max(vocal.Rate, instrumental.Rate)
	}

	r := audio.NewResampler(rate)
	v, err := r.Resample(ctx, vocal)
	if err != nil {
		return nil, fmt.Errorf("resample vocal: %w", err)
	}
	inst, err := r.Resample(ctx, instrumental)
	if err != nil {
		return nil, fmt.Errorf("resample instrumental: %w", err)
	}

	frames := max(v.Frames(), inst.Frames())
	channels := max(v.NumChannels(), inst.NumChannels())

	off, err := graph.NewOfflineContext(rate, channels, frames, m.opts.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMixInput, err)
	}

	for _, track := range []struct {
		buf  *audio.Buffer
		gain float64
	}{
		{v, c.VocalGain},
		{inst, c.InstrumentalGain},
	} {
		src := graph.NewBufferSource(off, track.buf, graph.SourceOptions{SilenceMissing: true})
		off.Connect(graph.NewSubgraph(src, graph.NewGain(off, track.gain)))
	}

	off.Insert(graph.NewGain(off, c.MasterGain))
	if c.ApplyCompression {
		off.Insert(graph.NewCompressor(off, graph.DefaultCompressorOptions()))
	}
	if c.ApplyReverb && c.ReverbAmount > 0 {
		off.Insert(graph.NewConvolver(off, m.impulse(rate, channels), c.ReverbAmount, 1-c.ReverbAmount))
	}

	buf, err := off.Render(ctx)
	if err != nil {
		return nil, err
	}

	data, err := wav.EncodeBytes(buf)
	if err != nil {
		return nil, fmt.Errorf("encode mix: %w", err)
	}

	return &Mixdown{Buffer: buf, Data: data, MIMEType: wav.MIMEType}, nil
}

// impulse returns the shared impulse response for a rate and layout.
func (m *Mixer) impulse(rate, channels int) *audio.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := irKey{rate, channels}
	if ir, ok := m.irs[k]; ok {
		return ir
	}

	ir := graph.GenerateImpulse(rate, channels, graph.DefaultImpulseSeconds, graph.DefaultImpulseDecay, graph.DefaultImpulseSeed)
	m.irs[k] = ir

	return ir
}

func checkInput(name string, b *audio.Buffer) error {
	if b == nil {
		return fmt.Errorf("%w: %s buffer is nil", ErrInvalidMixInput, name)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidMixInput, name, err)
	}
	if b.NumChannels() == 0 || b.Frames() == 0 {
		return fmt.Errorf("%w: %s buffer is empty", ErrInvalidMixInput, name)
	}

	return nil
}
