// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"fmt"

	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/utils"
)

// Config is the per-mix setting.
type Config struct {
	VocalGain        float64
	InstrumentalGain float64
	MasterGain       float64
	ApplyCompression bool
	ApplyReverb      bool
	// ReverbAmount in [0,1] is the wet level; dry is 1 - ReverbAmount.
	ReverbAmount float64
}

func DefaultConfig() Config {
	return Config{
		VocalGain:        1,
		InstrumentalGain: 0.8,
		MasterGain:       1,
		ApplyCompression: true,
		ApplyReverb:      true,
		ReverbAmount:     0.25,
	}
}

func (c Config) Validate() error {
	gains := []struct {
		name string
		v    float64
	}{
		{"vocal gain", c.VocalGain},
		{"instrumental gain", c.InstrumentalGain},
		{"master gain", c.MasterGain},
	}
	for _, g := range gains {
		if !utils.Finite(g.v) || g.v < 0 || g.v > graph.MaxGain {
			return fmt.Errorf("%w: %s %v", ErrInvalidMixInput, g.name, g.v)
		}
	}

	if !utils.Finite(c.ReverbAmount) || c.ReverbAmount < 0 || c.ReverbAmount > 1 {
		return fmt.Errorf("%w: reverb amount %v", ErrInvalidMixInput, c.ReverbAmount)
	}

	return nil
}

// Options size the render.
type Options struct {
	// SampleRate of the mixdown; zero uses the higher input rate.
	SampleRate int
	BlockSize  int
}

func DefaultOptions() Options {
	return Options{BlockSize: 512}
}
