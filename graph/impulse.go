// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"math/rand/v2"

	"github.com/ik5/vocalengine/audio"
)

// Impulse response defaults shared by live reverb and the offline mixer.
const (
	DefaultImpulseSeconds = 2.0
	DefaultImpulseDecay   = 3.0
	DefaultImpulseSeed    = 0x5eed
)

const impulseLowPass = 0.35

// GenerateImpulse synthesises a reverb tail: white noise shaped by
// exp(-decay*t), smoothed by a one-pole low-pass and normalised to unit
// energy per channel. The same seed always yields the same samples.
func GenerateImpulse(rate, channels int, seconds, decay float64, seed uint64) *audio.Buffer {
	frames := max(int(seconds*float64(rate)), 1)
	buf := audio.NewBuffer(channels, frames, rate)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	for _, ch := range buf.Data {
		var state, energy float64
		for i := range ch {
			t := float64(i) / float64(rate)
			noise := rng.Float64()*2 - 1
			state += impulseLowPass * (noise*math.Exp(-decay*t) - state)
			ch[i] = float32(state)
			energy += state * state
		}

		if energy > 0 {
			norm := float32(1 / math.Sqrt(energy))
			for i := range ch {
				ch[i] *= norm
			}
		}
	}

	return buf
}
