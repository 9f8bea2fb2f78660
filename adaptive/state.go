// SPDX-License-Identifier: EPL-2.0

package adaptive

import (
	"math"
	"time"

	"github.com/ik5/vocalengine/utils"
)

// State is the set of live adjustments.
type State struct {
	TempoMultiplier  float64
	KeySemitoneShift float64
	VolumeScale      float64
	EffectsIntensity float64
}

func nominal(cfg Config) State {
	return State{TempoMultiplier: 1, VolumeScale: cfg.NominalVolume}
}

// Sample is one measurement from the pitch analyser. Scores are in [0,1].
type Sample struct {
	PitchAccuracy    float64
	TempoConsistency float64
	Confidence       float64
	// DetectedFrequency in Hz; zero when no pitch was detected.
	DetectedFrequency float64
	Timestamp         time.Time
}

// sanitize clamps scores and reports false for samples with non-finite
// scores.
func (s Sample) sanitize() (Sample, bool) {
	if !utils.Finite(s.PitchAccuracy) || !utils.Finite(s.TempoConsistency) || !utils.Finite(s.Confidence) {
		return s, false
	}

	s.PitchAccuracy = utils.Clamp(s.PitchAccuracy, 0, 1)
	s.TempoConsistency = utils.Clamp(s.TempoConsistency, 0, 1)
	s.Confidence = utils.Clamp(s.Confidence, 0, 1)
	if !utils.Finite(s.DetectedFrequency) || s.DetectedFrequency <= 0 {
		s.DetectedFrequency = 0
	}

	return s, true
}

// Averages are the rolling means over the window.
type Averages struct {
	Accuracy    float64
	Consistency float64
	Confidence  float64
	// Frequency averages only samples with a detected pitch; zero when none.
	Frequency float64
	Samples   int
}

func average(window []Sample) Averages {
	var a Averages
	var voiced int
	for _, s := range window {
		a.Accuracy += s.PitchAccuracy
		a.Consistency += s.TempoConsistency
		a.Confidence += s.Confidence
		if s.DetectedFrequency > 0 {
			a.Frequency += s.DetectedFrequency
			voiced++
		}
	}

	a.Samples = len(window)
	if a.Samples > 0 {
		n := float64(a.Samples)
		a.Accuracy /= n
		a.Consistency /= n
		a.Confidence /= n
	}
	if voiced > 0 {
		a.Frequency /= float64(voiced)
	}

	return a
}

// semitoneOffset is the nearest whole semitone from ref to f, folded into
// [-6, 6] so an octave error reads as no offset.
func semitoneOffset(f, ref float64) float64 {
	n := math.Round(12 * math.Log2(f/ref))
	n = math.Mod(n, 12)
	switch {
	case n > 6:
		n -= 12
	case n < -6:
		n += 12
	}

	return n
}

// step derives the next state from prev and the window averages.
func step(cfg Config, prev State, a Averages) State {
	next := prev

	switch {
	case a.Consistency < cfg.TempoLowThreshold:
		next.TempoMultiplier -= cfg.TempoStepDown
	case a.Consistency > cfg.TempoHighThreshold && a.Accuracy > cfg.AccuracyHighThreshold:
		next.TempoMultiplier += cfg.TempoStepUp
	}
	next.TempoMultiplier = utils.Clamp(next.TempoMultiplier, 1-cfg.MaxTempoDeviation, 1+cfg.MaxTempoDeviation)

	if a.Confidence > cfg.KeyConfidenceThreshold && a.Frequency > 0 {
		offset := semitoneOffset(a.Frequency, cfg.TrackKeyHz)
		if a.Accuracy < cfg.KeyAccuracyThreshold && math.Abs(offset) <= cfg.MaxKeyDeviation {
			next.KeySemitoneShift = offset
		}
	}

	if a.Confidence < cfg.VolumeConfidenceLow {
		next.VolumeScale -= cfg.VolumeStepDown
	} else {
		next.VolumeScale += cfg.VolumeStepUp
	}
	next.VolumeScale = utils.Clamp(next.VolumeScale, cfg.VolumeFloor, cfg.NominalVolume)

	next.EffectsIntensity = utils.Clamp(a.Accuracy*cfg.EffectsScale, 0, 1)

	return next
}
