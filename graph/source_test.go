// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"testing"

	"github.com/ik5/vocalengine/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampBuffer(frames, rate int) *audio.Buffer {
	b := audio.NewBuffer(1, frames, rate)
	for i := range frames {
		b.Data[0][i] = float32(i)
	}

	return b
}

func TestBufferSourceWindow(t *testing.T) {
	t.Parallel()

	ctx := &testCtx{rate: 100, channels: 1, block: 10}
	s := NewBufferSource(ctx, rampBuffer(100, 100), SourceOptions{Start: 0.2, End: 0.25})

	start, end := s.Window()
	assert.InDelta(t, 0.2, start, 1e-9)
	assert.InDelta(t, 0.25, end, 1e-9)

	dst := make([]float32, 10)
	alive := s.Process(dst, Clock{Rate: 100, Channels: 1})

	assert.False(t, alive)
	assert.True(t, s.Ended())
	assert.Equal(t, []float32{20, 21, 22, 23, 24, 0, 0, 0, 0, 0}, dst)
	assert.InDelta(t, 0.25, s.Position(), 1e-9)
}

func TestBufferSourceLoop(t *testing.T) {
	t.Parallel()

	ctx := &testCtx{rate: 100, channels: 1, block: 10}
	s := NewBufferSource(ctx, rampBuffer(4, 100), SourceOptions{Loop: true})

	dst := make([]float32, 10)
	assert.True(t, s.Process(dst, Clock{Rate: 100, Channels: 1}))
	assert.Equal(t, []float32{0, 1, 2, 3, 0, 1, 2, 3, 0, 1}, dst)
}

func TestBufferSourceUpsamplesAndMapsChannels(t *testing.T) {
	t.Parallel()

	ctx := &testCtx{rate: 200, channels: 2, block: 4}
	s := NewBufferSource(ctx, rampBuffer(10, 100), SourceOptions{})

	dst := make([]float32, 8)
	require.True(t, s.Process(dst, Clock{Rate: 200, Channels: 2}))

	// half-speed reads, mono duplicated to both channels
	assert.InDelta(t, 0, dst[0], 1e-6)
	assert.InDelta(t, 0, dst[1], 1e-6)
	assert.InDelta(t, 1, dst[4], 1e-6)
	assert.InDelta(t, 1, dst[5], 1e-6)
	assert.InDelta(t, 0.02, s.Position(), 1e-9)

	silent := NewBufferSource(ctx, rampBuffer(10, 100), SourceOptions{SilenceMissing: true})
	dst = make([]float32, 8)
	silent.Process(dst, Clock{Rate: 200, Channels: 2})
	assert.InDelta(t, 1, dst[4], 1e-6)
	assert.Zero(t, dst[5])
}

func TestBufferSourcePlaybackRate(t *testing.T) {
	t.Parallel()

	ctx := &testCtx{rate: 100, channels: 1, block: 5}
	s := NewBufferSource(ctx, rampBuffer(100, 100), SourceOptions{Rate: 2})

	dst := make([]float32, 5)
	s.Process(dst, Clock{Rate: 100, Channels: 1})
	assert.Equal(t, []float32{0, 2, 4, 6, 8}, dst)
}

func TestSubgraphAndOffline(t *testing.T) {
	t.Parallel()

	o, err := NewOfflineContext(100, 1, 25, 10)
	require.NoError(t, err)

	src := NewBufferSource(o, rampBuffer(20, 100), SourceOptions{})
	o.Connect(NewSubgraph(src, NewGain(o, 0.5)))
	o.Insert(NewGain(o, 2))

	out, err := o.Render(t.Context())
	require.NoError(t, err)

	require.Equal(t, 25, out.Frames())
	assert.InDelta(t, 19, out.Data[0][19], 1e-6)
	assert.Zero(t, out.Data[0][24])
	assert.InDelta(t, 0.3, o.Now(), 1e-9)
}
