// SPDX-License-Identifier: EPL-2.0

package graph

import "fmt"

// Config sizes the real-time graph.
type Config struct {
	SampleRate int
	Channels   int
	// BlockSize is the number of frames rendered per graph pass. It is also
	// the convolver partition length.
	BlockSize int
}

func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		Channels:   2,
		BlockSize:  512,
	}
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, c.Channels)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, c.BlockSize)
	}

	return nil
}

// BlockSeconds is the duration of one render block.
func (c Config) BlockSeconds() float64 {
	return float64(c.BlockSize) / float64(c.SampleRate)
}
