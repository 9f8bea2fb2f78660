// SPDX-License-Identifier: EPL-2.0

package adaptive

import "time"

// Config holds every threshold and step of the adaptation rules. The
// defaults are a starting point for tuning, not a contract.
type Config struct {
	WindowSize int

	TempoLowThreshold     float64
	TempoHighThreshold    float64
	AccuracyHighThreshold float64
	TempoStepDown         float64
	TempoStepUp           float64
	MaxTempoDeviation     float64

	KeyConfidenceThreshold float64
	KeyAccuracyThreshold   float64
	MaxKeyDeviation        float64
	// TrackKeyHz is the nominal tonic of the backing track.
	TrackKeyHz float64

	VolumeConfidenceLow float64
	VolumeStepDown      float64
	VolumeStepUp        float64
	VolumeFloor         float64
	NominalVolume       float64

	EffectsScale float64

	SignificantKeyDelta     float64
	SignificantEffectsDelta float64
	RampDuration            time.Duration

	// MaxReverbWet is the reverb wet level at full effects intensity.
	MaxReverbWet float64
}

func DefaultConfig() Config {
	return Config{
		WindowSize: 10,

		TempoLowThreshold:     0.6,
		TempoHighThreshold:    0.85,
		AccuracyHighThreshold: 0.8,
		TempoStepDown:         0.02,
		TempoStepUp:           0.01,
		MaxTempoDeviation:     0.15,

		KeyConfidenceThreshold: 0.7,
		KeyAccuracyThreshold:   0.6,
		MaxKeyDeviation:        3,
		TrackKeyHz:             440,

		VolumeConfidenceLow: 0.5,
		VolumeStepDown:      0.05,
		VolumeStepUp:        0.02,
		VolumeFloor:         0.3,
		NominalVolume:       1,

		EffectsScale: 1,

		SignificantKeyDelta:     1,
		SignificantEffectsDelta: 0.3,
		RampDuration:            100 * time.Millisecond,

		MaxReverbWet: 0.5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MaxTempoDeviation <= 0 || c.MaxTempoDeviation >= 1 {
		c.MaxTempoDeviation = d.MaxTempoDeviation
	}
	if c.TrackKeyHz <= 0 {
		c.TrackKeyHz = d.TrackKeyHz
	}
	if c.NominalVolume <= 0 {
		c.NominalVolume = d.NominalVolume
	}
	if c.VolumeFloor <= 0 || c.VolumeFloor > c.NominalVolume {
		c.VolumeFloor = min(d.VolumeFloor, c.NominalVolume)
	}
	if c.EffectsScale <= 0 {
		c.EffectsScale = d.EffectsScale
	}
	if c.MaxKeyDeviation < 0 {
		c.MaxKeyDeviation = 0
	}
	if c.RampDuration <= 0 {
		c.RampDuration = d.RampDuration
	}
	if c.MaxReverbWet <= 0 || c.MaxReverbWet > 1 {
		c.MaxReverbWet = d.MaxReverbWet
	}

	return c
}
