// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"github.com/ik5/vocalengine/audio"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Convolver applies an impulse response with uniformly partitioned
// overlap-save FFT convolution. The partition length is the block size of
// the rendering context, so latency is zero beyond the block itself.
type Convolver struct {
	block int
	parts int

	fft *fourier.FFT
	// filters[ch][k] is the spectrum of partition k of the IR channel
	// feeding output channel ch.
	filters [][][]complex128
	// history[ch] is a ring of input spectra; head points at the newest.
	history [][][]complex128
	head    int

	// last two blocks of input per channel
	input [][]float64
	acc   []complex128
	time  []float64
	wetIn []float32

	wet *Param
	dry *Param
}

// NewConvolver builds a convolver for ctx. IR channels are assigned to
// output channels round-robin.
func NewConvolver(ctx Context, ir *audio.Buffer, wet, dry float64) *Convolver {
	block := ctx.BlockSize()
	channels := ctx.Channels()
	n := 2 * block
	bins := n/2 + 1

	irFrames := 0
	if ir != nil {
		irFrames = ir.Frames()
	}
	parts := max((irFrames+block-1)/block, 1)

	c := &Convolver{
		block:   block,
		parts:   parts,
		fft:     fourier.NewFFT(n),
		filters: make([][][]complex128, channels),
		history: make([][][]complex128, channels),
		input:   make([][]float64, channels),
		acc:     make([]complex128, bins),
		time:    make([]float64, n),
		wetIn:   make([]float32, block*channels),
		wet:     NewParam("wet", wet, 0, 1, ctx.Now),
		dry:     NewParam("dry", dry, 0, 1, ctx.Now),
	}

	seq := make([]float64, n)
	for ch := range channels {
		var src []float32
		if ir != nil && ir.NumChannels() > 0 {
			src = ir.Data[ch%ir.NumChannels()]
		}

		c.filters[ch] = make([][]complex128, parts)
		c.history[ch] = make([][]complex128, parts)
		for k := range parts {
			clear(seq)
			for i := range block {
				if j := k*block + i; j < len(src) {
					seq[i] = float64(src[j])
				}
			}
			c.filters[ch][k] = c.fft.Coefficients(nil, seq)
			c.history[ch][k] = make([]complex128, bins)
		}
		c.input[ch] = make([]float64, n)
	}

	return c
}

func (c *Convolver) Wet() *Param { return c.wet }
func (c *Convolver) Dry() *Param { return c.dry }

// Partitions is the number of IR partitions.
func (c *Convolver) Partitions() int { return c.parts }

func (c *Convolver) Process(buf []float32, clock Clock) {
	channels := clock.Channels
	frames := min(len(buf)/channels, c.block)
	if frames == 0 || channels > len(c.filters) {
		return
	}

	c.head = (c.head + c.parts - 1) % c.parts
	n := 2 * c.block
	scale := 1 / float64(n)

	for ch := range channels {
		in := c.input[ch]
		copy(in, in[c.block:])
		for i := range c.block {
			v := 0.0
			if i < frames {
				v = float64(buf[i*channels+ch])
			}
			in[c.block+i] = v
		}

		c.fft.Coefficients(c.history[ch][c.head], in)

		clear(c.acc)
		for k := range c.parts {
			x := c.history[ch][(c.head+k)%c.parts]
			h := c.filters[ch][k]
			for b := range c.acc {
				c.acc[b] += x[b] * h[b]
			}
		}

		c.fft.Sequence(c.time, c.acc)
		for i := range frames {
			c.wetIn[i*channels+ch] = float32(c.time[c.block+i] * scale)
		}
	}

	w0, w1 := c.wet.blockValues(clock, frames)
	d0, d1 := c.dry.blockValues(clock, frames)
	for f := range frames {
		x := float64(f) / float64(frames)
		wet := float32(w0 + (w1-w0)*x)
		dry := float32(d0 + (d1-d0)*x)
		base := f * channels
		for ch := range channels {
			buf[base+ch] = dry*buf[base+ch] + wet*c.wetIn[base+ch]
		}
	}
}
