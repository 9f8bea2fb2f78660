// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"sync/atomic"

	"github.com/ik5/vocalengine/utils"
)

// CompressorOptions is a fixed compressor curve. Times are in seconds.
type CompressorOptions struct {
	Threshold float64 // dB
	Knee      float64 // dB
	Ratio     float64
	Attack    float64
	Release   float64
}

// DefaultCompressorOptions is the curve used by the master bus and the
// offline mixer.
func DefaultCompressorOptions() CompressorOptions {
	return CompressorOptions{
		Threshold: -24,
		Knee:      30,
		Ratio:     12,
		Attack:    0.003,
		Release:   0.25,
	}
}

func (o CompressorOptions) sanitize() CompressorOptions {
	o.Threshold = utils.Clamp(o.Threshold, -100, 0)
	o.Knee = utils.Clamp(o.Knee, 0, 40)
	o.Ratio = utils.Clamp(o.Ratio, 1, 20)
	o.Attack = utils.Clamp(o.Attack, 0, 1)
	o.Release = utils.Clamp(o.Release, 0, 1)

	return o
}

// Compressor is a feed-forward, channel-linked compressor with a soft knee.
// The detector follows the loudest channel.
type Compressor struct {
	opts        CompressorOptions
	attackCoef  float64
	releaseCoef float64

	// smoothed gain reduction in dB, <= 0
	reduction float64
	meter     atomic.Uint64
}

func NewCompressor(ctx Context, opts CompressorOptions) *Compressor {
	opts = opts.sanitize()
	rate := float64(ctx.SampleRate())

	return &Compressor{
		opts:        opts,
		attackCoef:  timeCoef(opts.Attack, rate),
		releaseCoef: timeCoef(opts.Release, rate),
	}
}

func timeCoef(seconds, rate float64) float64 {
	if seconds <= 0 {
		return 0
	}

	return math.Exp(-1 / (seconds * rate))
}

func (c *Compressor) Options() CompressorOptions { return c.opts }

// Reduction is the most recent gain reduction in dB (zero or negative).
func (c *Compressor) Reduction() float64 {
	return math.Float64frombits(c.meter.Load())
}

// curve returns the static output level for input level x (both dB).
func (c *Compressor) curve(x float64) float64 {
	t, w, r := c.opts.Threshold, c.opts.Knee, c.opts.Ratio

	over := x - t
	switch {
	case 2*over < -w:
		return x
	case w > 0 && 2*math.Abs(over) <= w:
		d := over + w/2
		return x + (1/r-1)*d*d/(2*w)
	default:
		return t + over/r
	}
}

func (c *Compressor) Process(buf []float32, clock Clock) {
	channels := clock.Channels
	frames := len(buf) / channels

	for f := range frames {
		base := f * channels

		var level float64
		for ch := range channels {
			if a := math.Abs(float64(buf[base+ch])); a > level {
				level = a
			}
		}

		target := 0.0
		if level > 1e-9 {
			x := utils.GainToDB(level)
			target = c.curve(x) - x
		}

		coef := c.releaseCoef
		if target < c.reduction {
			coef = c.attackCoef
		}
		c.reduction = target + coef*(c.reduction-target)

		g := float32(utils.DBToGain(c.reduction))
		for ch := range channels {
			buf[base+ch] *= g
		}
	}

	c.meter.Store(math.Float64bits(c.reduction))
}
