// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/internal/audiotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromInterleavedRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{1, 2, 3, 4, 5, 6, 7}
	b := audio.FromInterleaved(in, 2, 8000)

	require.Equal(t, 2, b.NumChannels())
	require.Equal(t, 3, b.Frames())
	assert.Equal(t, []float32{1, 3, 5}, b.Data[0])
	assert.Equal(t, []float32{2, 4, 6}, b.Data[1])
	assert.Equal(t, in[:6], b.Interleave(nil))
}

func TestBufferMeasurements(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(2, 22050, 44100)

	assert.InDelta(t, 0.5, b.Seconds(), 1e-9)
	assert.Equal(t, 500*time.Millisecond, b.Duration())
	assert.Equal(t, int64(22050*2*4), b.ByteSize())
	assert.Nil(t, b.Channel(2))
	assert.NotNil(t, b.Channel(1))
}

func TestBufferValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  *audio.Buffer
		want error
	}{
		{name: "nil", buf: nil, want: audio.ErrEmptyBuffer},
		{name: "no channels", buf: &audio.Buffer{Rate: 8000}, want: audio.ErrEmptyBuffer},
		{name: "no frames", buf: audio.NewBuffer(1, 0, 8000), want: audio.ErrEmptyBuffer},
		{name: "no rate", buf: audio.NewBuffer(1, 10, 0), want: audio.ErrInvalidSampleRate},
		{name: "ok", buf: audio.NewBuffer(1, 10, 8000), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.buf.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPeakAndClone(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(2, 4, 8000)
	b.Data[1][2] = -0.75

	assert.InDelta(t, 0.75, b.Peak(), 1e-9)

	c := b.Clone()
	c.Data[1][2] = 0
	assert.InDelta(t, -0.75, b.Data[1][2], 1e-9)
}

func TestReadAll(t *testing.T) {
	t.Parallel()

	src := audiotest.NewConstantSource(16000, 2, 10000, 0.25).WithChunk(333)

	b, err := audio.ReadAll(t.Context(), src)
	require.NoError(t, err)

	assert.Equal(t, 16000, b.Rate)
	assert.Equal(t, 2, b.NumChannels())
	assert.Equal(t, 10000, b.Frames())
	assert.InDelta(t, 0.25, b.Data[1][9999], 1e-9)
}

func TestReadAllCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := audio.ReadAll(ctx, audiotest.NewSource(8000, 1, 100, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadAllDecodeError(t *testing.T) {
	t.Parallel()

	corrupt := errors.New("corrupt frame")
	src := audiotest.NewConstantSource(8000, 1, 1000, 0.5).WithChunk(100).FailAfter(300, corrupt)

	_, err := audio.ReadAll(t.Context(), src)
	assert.ErrorIs(t, err, corrupt)
	assert.Equal(t, 300, src.Pos())
}

func TestBufferSource(t *testing.T) {
	t.Parallel()

	b := audio.FromInterleaved([]float32{1, 2, 3, 4, 5, 6}, 2, 8000)
	src := audio.NewBufferSource(b)

	dst := make([]float32, 4)
	n, err := src.ReadSamples(dst)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, dst[:n])

	n, err = src.ReadSamples(dst)
	assert.Equal(t, []float32{5, 6}, dst[:n])
	assert.ErrorIs(t, err, io.EOF)

	_, err = src.ReadSamples(make([]float32, 3))
	assert.ErrorIs(t, err, audio.ErrInvalidDstSize)
}
