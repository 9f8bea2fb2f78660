// SPDX-License-Identifier: EPL-2.0

package malgodev

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/recorder"
	"github.com/ik5/vocalengine/utils"
)

// Context owns a miniaudio context shared by the devices it opens.
type Context struct {
	ctx *malgo.AllocatedContext
	log logrus.FieldLogger
}

// NewContext initialises miniaudio with backends, or the platform default
// when none are given.
func NewContext(log logrus.FieldLogger, backends ...malgo.Backend) (*Context, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, func(msg string) {
		log.WithFields(logrus.Fields{
			"function": "miniaudio",
		}).Debug(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrUnsupportedPlatform, err)
	}

	return &Context{ctx: ctx, log: log}, nil
}

func (c *Context) Close() error {
	if err := c.ctx.Uninit(); err != nil {
		return err
	}
	c.ctx.Free()

	return nil
}

// Output opens a playback device.
func (c *Context) Output(cfg graph.OutputConfig) (graph.Device, error) {
	dc := malgo.DefaultDeviceConfig(malgo.Playback)
	dc.Playback.Format = malgo.FormatS16
	dc.Playback.Channels = uint32(cfg.Channels)
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.PeriodSizeInFrames = uint32(cfg.PeriodFrames)
	dc.Alsa.NoMMap = 1

	d := &output{channels: cfg.Channels}
	dev, err := malgo.InitDevice(c.ctx.Context, dc, malgo.DeviceCallbacks{Data: d.onSamples})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrUnsupportedPlatform, err)
	}
	d.dev = dev

	c.log.WithFields(logrus.Fields{
		"function":    "Output",
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
	}).Debug("Playback device opened")

	return d, nil
}

type output struct {
	dev      *malgo.Device
	channels int
	render   atomic.Pointer[func([]float32)]
	buf      []float32
}

func (d *output) Start(render func(out []float32)) error {
	d.render.Store(&render)
	return d.dev.Start()
}

func (d *output) Close() error {
	d.dev.Uninit()
	return nil
}

func (d *output) onSamples(out, _ []byte, frames uint32) {
	n := int(frames) * d.channels
	if cap(d.buf) < n {
		d.buf = make([]float32, n)
	}
	buf := d.buf[:n]

	if r := d.render.Load(); r != nil {
		(*r)(buf)
	} else {
		clear(buf)
	}

	utils.PutPCM16(out, buf)
}

// Capture opens a capture device. Denied access is reported as
// recorder.ErrPermissionDenied and a missing device or backend as
// graph.ErrUnsupportedPlatform.
func (c *Context) Capture(_ context.Context, cfg recorder.StreamConfig) (recorder.Stream, error) {
	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = uint32(cfg.Channels)
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.Alsa.NoMMap = 1

	s := &capture{channels: cfg.Channels}
	dev, err := malgo.InitDevice(c.ctx.Context, dc, malgo.DeviceCallbacks{Data: s.onSamples})
	if err != nil {
		return nil, captureError(err)
	}
	s.dev = dev

	return s, nil
}

func captureError(err error) error {
	switch {
	case errors.Is(err, malgo.ErrAccessDenied):
		return fmt.Errorf("%w: %w", recorder.ErrPermissionDenied, err)
	case errors.Is(err, malgo.ErrNoBackend),
		errors.Is(err, malgo.ErrNoDevice),
		errors.Is(err, malgo.ErrAPINotFound),
		errors.Is(err, malgo.ErrDeviceTypeNotSupported):
		return fmt.Errorf("%w: %w", graph.ErrUnsupportedPlatform, err)
	}

	return fmt.Errorf("open capture device: %w", err)
}

type capture struct {
	dev      *malgo.Device
	channels int
	onData   atomic.Pointer[func([]float32)]
	buf      []float32

	closeOnce sync.Once
}

func (s *capture) Start(onData func(samples []float32)) error {
	s.onData.Store(&onData)
	return s.dev.Start()
}

func (s *capture) Stop() error {
	return s.dev.Stop()
}

func (s *capture) Close() error {
	s.closeOnce.Do(s.dev.Uninit)
	return nil
}

func (s *capture) onSamples(_, in []byte, frames uint32) {
	fn := s.onData.Load()
	if fn == nil || in == nil {
		return
	}

	n := int(frames) * s.channels
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
	}
	n = utils.PCM16ToFloat32(s.buf[:n], in)

	(*fn)(s.buf[:n])
}
