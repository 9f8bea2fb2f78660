// SPDX-License-Identifier: EPL-2.0

package recorder

import (
	"fmt"
	"time"
)

type Config struct {
	SampleRate int
	Channels   int
	// ChunkInterval is how often pending samples are encoded into a chunk.
	ChunkInterval time.Duration
	// PeakInterval is how often the analyser peak is sampled.
	PeakInterval time.Duration
	// PeakBufferSize bounds the rolling peak history.
	PeakBufferSize int
	// WaveformPoints is the resolution of Result.Waveform.
	WaveformPoints int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:     48000,
		Channels:       1,
		ChunkInterval:  100 * time.Millisecond,
		PeakInterval:   50 * time.Millisecond,
		PeakBufferSize: 128,
		WaveformPoints: 200,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = d.ChunkInterval
	}
	if c.PeakInterval <= 0 {
		c.PeakInterval = d.PeakInterval
	}
	if c.PeakBufferSize <= 0 {
		c.PeakBufferSize = d.PeakBufferSize
	}
	if c.WaveformPoints <= 0 {
		c.WaveformPoints = d.WaveformPoints
	}

	return c
}

// Options override the capture format of a single take.
type Options struct {
	SampleRate int
	Channels   int
}

func (o Options) resolve(c Config) (StreamConfig, error) {
	sc := StreamConfig{SampleRate: c.SampleRate, Channels: c.Channels}
	if o.SampleRate > 0 {
		sc.SampleRate = o.SampleRate
	}
	if o.Channels > 0 {
		sc.Channels = o.Channels
	}

	if sc.Channels > 2 {
		return sc, fmt.Errorf("%w: %d channels", ErrInvalidConfig, sc.Channels)
	}

	return sc, nil
}
