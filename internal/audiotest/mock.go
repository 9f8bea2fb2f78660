// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"io"
)

// Signal computes the sample of channel ch at frame.
type Signal func(frame, ch int) float32

// Source streams a Signal through audio.Source the way a decoder would:
// in chunks of at most Chunk frames, optionally failing part way through.
type Source struct {
	rate     int
	channels int
	frames   int
	signal   Signal

	pos    int
	chunk  int
	failAt int
	err    error
}

// NewSource returns a source of frames frames. A nil signal is silence.
func NewSource(rate, channels, frames int, signal Signal) *Source {
	if signal == nil {
		signal = func(int, int) float32 { return 0 }
	}

	return &Source{
		rate:     rate,
		channels: channels,
		frames:   frames,
		signal:   signal,
		chunk:    1024,
		failAt:   -1,
	}
}

// NewConstantSource holds every channel at v.
func NewConstantSource(rate, channels, frames int, v float32) *Source {
	return NewSource(rate, channels, frames, func(int, int) float32 { return v })
}

// WithChunk caps how many frames one ReadSamples call returns.
func (s *Source) WithChunk(frames int) *Source {
	s.chunk = max(frames, 1)
	return s
}

// FailAfter makes the read that crosses frame return err instead of EOF.
func (s *Source) FailAfter(frame int, err error) *Source {
	s.failAt, s.err = frame, err
	return s
}

func (s *Source) SampleRate() int { return s.rate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BufSize() int    { return s.chunk * s.channels }
func (s *Source) Close() error    { return nil }

// Pos is the number of frames delivered so far.
func (s *Source) Pos() int { return s.pos }

func (s *Source) ReadSamples(dst []float32) (int, error) {
	if s.pos >= s.frames {
		return 0, io.EOF
	}

	n := min(len(dst)/s.channels, s.chunk, s.frames-s.pos)
	for f := range n {
		for c := range s.channels {
			dst[f*s.channels+c] = s.signal(s.pos+f, c)
		}
	}
	s.pos += n

	if s.failAt >= 0 && s.pos >= s.failAt {
		return n * s.channels, s.err
	}
	if s.pos >= s.frames {
		return n * s.channels, io.EOF
	}

	return n * s.channels, nil
}
