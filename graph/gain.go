// SPDX-License-Identifier: EPL-2.0

package graph

// MaxGain bounds gain params; +12 dB leaves headroom for mix staging.
const MaxGain = 4.0

// Gain scales a block by an automatable factor, interpolating across the
// block so ramps stay smooth between block boundaries.
type Gain struct {
	gain *Param
}

func NewGain(ctx Context, value float64) *Gain {
	return &Gain{gain: NewParam("gain", value, 0, MaxGain, ctx.Now)}
}

func (g *Gain) Param() *Param { return g.gain }

func (g *Gain) Process(buf []float32, clock Clock) {
	frames := len(buf) / clock.Channels
	if frames == 0 {
		return
	}

	g0, g1 := g.gain.blockValues(clock, frames)
	if g0 == 1 && g1 == 1 {
		return
	}

	step := (g1 - g0) / float64(frames)
	for f := range frames {
		v := float32(g0 + step*float64(f))
		base := f * clock.Channels
		for c := range clock.Channels {
			buf[base+c] *= v
		}
	}
}
