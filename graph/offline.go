// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ik5/vocalengine/audio"
)

// OfflineContext renders a fixed number of frames as fast as possible,
// using the same Voice and Node model as Engine but no device and no
// shared state.
type OfflineContext struct {
	rate     int
	channels int
	block    int
	frames   int

	voices []Voice
	nodes  []Node
	clock  atomic.Int64
}

func NewOfflineContext(rate, channels, frames, block int) (*OfflineContext, error) {
	cfg := Config{SampleRate: rate, Channels: channels, BlockSize: block}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &OfflineContext{
		rate:     rate,
		channels: channels,
		block:    block,
		frames:   frames,
	}, nil
}

func (o *OfflineContext) SampleRate() int { return o.rate }
func (o *OfflineContext) Channels() int   { return o.channels }
func (o *OfflineContext) BlockSize() int  { return o.block }
func (o *OfflineContext) Frames() int     { return o.frames }

func (o *OfflineContext) Now() float64 {
	return float64(o.clock.Load()) / float64(o.rate)
}

// Connect adds a voice to the bus.
func (o *OfflineContext) Connect(v Voice) { o.voices = append(o.voices, v) }

// Insert appends n to the bus chain applied after the voices are summed.
func (o *OfflineContext) Insert(n Node) { o.nodes = append(o.nodes, n) }

// Render produces the output buffer. ctx is checked between blocks; on
// cancellation the partial render is dropped.
func (o *OfflineContext) Render(ctx context.Context) (*audio.Buffer, error) {
	out := audio.NewBuffer(o.channels, o.frames, o.rate)
	mix := make([]float32, o.block*o.channels)
	scratch := make([]float32, o.block*o.channels)
	alive := make([]bool, len(o.voices))
	for i := range alive {
		alive[i] = true
	}

	for done := 0; done < o.frames; done += o.block {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w", err)
		}

		clock := Clock{Frame: int64(done), Rate: o.rate, Channels: o.channels}
		clear(mix)

		for i, v := range o.voices {
			if !alive[i] {
				continue
			}
			clear(scratch)
			alive[i] = v.Process(scratch, clock)
			for j, s := range scratch {
				mix[j] += s
			}
		}

		for _, n := range o.nodes {
			n.Process(mix, clock)
		}

		n := min(o.block, o.frames-done)
		for f := range n {
			for c := range o.channels {
				out.Data[c][done+f] = mix[f*o.channels+c]
			}
		}

		o.clock.Add(int64(o.block))
	}

	return out, nil
}
