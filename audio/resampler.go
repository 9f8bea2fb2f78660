// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"
	"fmt"

	"github.com/ik5/vocalengine/utils"
)

// Resampler converts whole buffers to a target sample rate using cubic
// interpolation. When downsampling, a one-pole low-pass runs over the source
// first to tame aliasing.
type Resampler struct {
	dstRate     int
	filterAlpha float32
}

// NewResampler returns a resampler producing dstRate buffers.
func NewResampler(dstRate int) *Resampler {
	return &Resampler{
		dstRate:     dstRate,
		filterAlpha: 0.5,
	}
}

func (r *Resampler) SampleRate() int { return r.dstRate }

// Resample returns b converted to the target rate. A buffer already at the
// target rate is returned as is (no copy). ctx is checked once per channel.
func (r *Resampler) Resample(ctx context.Context, b *Buffer) (*Buffer, error) {
	if r.dstRate <= 0 || b.Rate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if b.Rate == r.dstRate {
		return b, nil
	}

	ratio := float64(b.Rate) / float64(r.dstRate)
	srcFrames := b.Frames()
	dstFrames := int(float64(srcFrames) / ratio)
	if srcFrames > 0 && dstFrames == 0 {
		dstFrames = 1
	}

	out := NewBuffer(len(b.Data), dstFrames, r.dstRate)
	for c, ch := range b.Data {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w", err)
		}

		src := ch
		if ratio > 1 {
			src = r.lowPass(ch)
		}

		dst := out.Data[c]
		for i := range dst {
			dst[i] = utils.CubicAt(src, float64(i)*ratio)
		}
	}

	return out, nil
}

// lowPass applies y[n] = a*x[n] + (1-a)*y[n-1], seeded with the first sample
// to avoid a warm-up transient.
func (r *Resampler) lowPass(ch []float32) []float32 {
	if len(ch) == 0 {
		return ch
	}

	out := make([]float32, len(ch))
	state := ch[0]
	for i, x := range ch {
		state = r.filterAlpha*x + (1-r.filterAlpha)*state
		out[i] = state
	}

	return out
}
