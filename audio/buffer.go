// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"
)

// bytesPerSample is the in-memory cost of one decoded sample.
const bytesPerSample = 4

// Buffer is decoded audio held in memory, one slice per channel (planar).
// A Buffer handed out by the cache is shared and must be treated as read-only.
type Buffer struct {
	Data [][]float32
	Rate int
}

// NewBuffer allocates a silent buffer.
func NewBuffer(channels, frames, rate int) *Buffer {
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}

	return &Buffer{Data: data, Rate: rate}
}

// FromInterleaved splits interleaved samples into a planar Buffer.
// A trailing partial frame is dropped.
func FromInterleaved(samples []float32, channels, rate int) *Buffer {
	if channels <= 0 {
		return &Buffer{Rate: rate}
	}

	frames := len(samples) / channels
	b := NewBuffer(channels, frames, rate)
	for f := range frames {
		base := f * channels
		for c := range channels {
			b.Data[c][f] = samples[base+c]
		}
	}

	return b
}

func (b *Buffer) SampleRate() int  { return b.Rate }
func (b *Buffer) NumChannels() int { return len(b.Data) }

// Frames is the length of the buffer in sample frames.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}

	return len(b.Data[0])
}

// Seconds is the buffer duration in seconds.
func (b *Buffer) Seconds() float64 {
	if b.Rate <= 0 {
		return 0
	}

	return float64(b.Frames()) / float64(b.Rate)
}

func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// ByteSize estimates the memory held by the decoded samples.
func (b *Buffer) ByteSize() int64 {
	return int64(b.Frames()) * int64(len(b.Data)) * bytesPerSample
}

// Channel returns channel c, or nil when the buffer has no such channel.
// Callers mixing buffers with different layouts treat nil as silence.
func (b *Buffer) Channel(c int) []float32 {
	if c < 0 || c >= len(b.Data) {
		return nil
	}

	return b.Data[c]
}

// Validate reports ErrEmptyBuffer or ErrInvalidSampleRate for buffers that
// cannot be played or mixed.
func (b *Buffer) Validate() error {
	if b == nil || len(b.Data) == 0 || b.Frames() == 0 {
		return ErrEmptyBuffer
	}
	if b.Rate <= 0 {
		return ErrInvalidSampleRate
	}

	return nil
}

// Interleave appends the buffer as interleaved samples to dst.
func (b *Buffer) Interleave(dst []float32) []float32 {
	channels := len(b.Data)
	frames := b.Frames()

	start := len(dst)
	dst = append(dst, make([]float32, frames*channels)...)
	out := dst[start:]
	for c, ch := range b.Data {
		for f, s := range ch {
			out[f*channels+c] = s
		}
	}

	return dst
}

// Peak returns the largest absolute sample value across all channels.
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, ch := range b.Data {
		for _, s := range ch {
			if a := float32(math.Abs(float64(s))); a > peak {
				peak = a
			}
		}
	}

	return peak
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Data: make([][]float32, len(b.Data)), Rate: b.Rate}
	for c, ch := range b.Data {
		out.Data[c] = append([]float32(nil), ch...)
	}

	return out
}

// ReadAll drains src into a Buffer. ctx is checked between reads so a
// cancelled decode stops early and drops what it collected. The source is not
// closed.
func ReadAll(ctx context.Context, src Source) (*Buffer, error) {
	channels := src.Channels()
	if channels <= 0 {
		return nil, ErrInvalidDstSize
	}
	if src.SampleRate() <= 0 {
		return nil, ErrInvalidSampleRate
	}

	size := src.BufSize()
	if size <= 0 {
		size = 4096
	}
	// Round down to whole frames so every read stays frame aligned.
	size = max(size/channels, 1) * channels

	buf := make([]float32, size)
	interleaved := make([]float32, 0, size*4)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w", err)
		}

		n, err := src.ReadSamples(buf)
		if n > 0 {
			interleaved = append(interleaved, buf[:n]...)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}
		if n == 0 {
			// A decoder with nothing to give and no error is treated as finished.
			break
		}
	}

	return FromInterleaved(interleaved, channels, src.SampleRate()), nil
}

// bufferSource streams a Buffer as an interleaved Source.
type bufferSource struct {
	buf *Buffer
	pos int
}

// NewBufferSource wraps b as a Source so buffers can feed the streaming
// processors (MonoMixer, encoders).
func NewBufferSource(b *Buffer) Source {
	return &bufferSource{buf: b}
}

func (s *bufferSource) SampleRate() int { return s.buf.Rate }
func (s *bufferSource) Channels() int   { return len(s.buf.Data) }
func (s *bufferSource) BufSize() int    { return 4096 }
func (s *bufferSource) Close() error    { return nil }

func (s *bufferSource) ReadSamples(dst []float32) (int, error) {
	channels := len(s.buf.Data)
	if channels == 0 {
		return 0, io.EOF
	}
	if len(dst)%channels != 0 {
		return 0, ErrInvalidDstSize
	}

	frames := min(len(dst)/channels, s.buf.Frames()-s.pos)
	if frames <= 0 {
		return 0, io.EOF
	}

	for f := range frames {
		for c := range channels {
			dst[f*channels+c] = s.buf.Data[c][s.pos+f]
		}
	}
	s.pos += frames

	if s.pos >= s.buf.Frames() {
		return frames * channels, io.EOF
	}

	return frames * channels, nil
}
