// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"sync/atomic"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/utils"
)

// MaxPlaybackRate bounds the playback-rate param.
const MaxPlaybackRate = 4.0

// SourceOptions configures a BufferSource.
type SourceOptions struct {
	Loop bool
	// Start and End window the buffer, in seconds. End <= 0 means the end
	// of the buffer.
	Start float64
	End   float64
	// Rate is the initial playback rate; zero means 1.
	Rate float64
	// SilenceMissing leaves output channels beyond the buffer's channel
	// count silent instead of repeating the buffer's channels.
	SilenceMissing bool
}

// BufferSource plays a decoded buffer, resampling on the fly to the context
// rate with cubic interpolation. Changing the rate param changes speed and
// pitch together.
type BufferSource struct {
	buf     *audio.Buffer
	rate    *Param
	loop    bool
	silence bool

	// window in buffer frames
	start, end float64
	// buffer frames per context frame at rate 1
	step float64

	pos      float64
	position atomic.Uint64
	done     atomic.Bool
}

func NewBufferSource(ctx Context, buf *audio.Buffer, opts SourceOptions) *BufferSource {
	frames := float64(buf.Frames())
	rate := float64(buf.Rate)

	start := utils.Clamp(opts.Start*rate, 0, frames)
	end := frames
	if opts.End > 0 {
		end = utils.Clamp(opts.End*rate, start, frames)
	}

	r := opts.Rate
	if r <= 0 {
		r = 1
	}

	s := &BufferSource{
		buf:     buf,
		rate:    NewParam("playbackRate", r, 1.0/MaxPlaybackRate, MaxPlaybackRate, ctx.Now),
		loop:    opts.Loop,
		silence: opts.SilenceMissing,
		start:   start,
		end:     end,
		step:    rate / float64(ctx.SampleRate()),
		pos:     start,
	}
	s.storePosition()

	return s
}

func (s *BufferSource) PlaybackRate() *Param { return s.rate }

// Position is the playhead in seconds from the start of the buffer.
func (s *BufferSource) Position() float64 {
	return math.Float64frombits(s.position.Load())
}

// Seek moves the playhead to seconds from the buffer start, clamped to the
// window. It must not be called while the source is connected.
func (s *BufferSource) Seek(seconds float64) {
	s.pos = utils.Clamp(seconds*float64(s.buf.Rate), s.start, s.end)
	s.done.Store(false)
	s.storePosition()
}

// Window returns the playable window in seconds.
func (s *BufferSource) Window() (float64, float64) {
	r := float64(s.buf.Rate)
	return s.start / r, s.end / r
}

// Ended reports whether a non-looping source played past its window.
func (s *BufferSource) Ended() bool { return s.done.Load() }

func (s *BufferSource) storePosition() {
	s.position.Store(math.Float64bits(s.pos / float64(s.buf.Rate)))
}

func (s *BufferSource) Process(dst []float32, clock Clock) bool {
	if s.done.Load() {
		return false
	}

	channels := clock.Channels
	frames := len(dst) / channels
	bufChannels := s.buf.NumChannels()
	if bufChannels == 0 || s.end <= s.start {
		s.done.Store(true)
		return false
	}

	r0, r1 := s.rate.blockValues(clock, frames)
	for f := range frames {
		if s.pos >= s.end {
			if !s.loop {
				s.done.Store(true)
				s.storePosition()
				return false
			}
			s.pos = s.start + math.Mod(s.pos-s.end, s.end-s.start)
		}

		base := f * channels
		for c := range channels {
			src := c % bufChannels
			if s.silence && c >= bufChannels {
				continue
			}
			dst[base+c] = utils.CubicAt(s.buf.Data[src], s.pos)
		}

		r := r0 + (r1-r0)*float64(f)/float64(frames)
		s.pos += s.step * r
	}

	s.storePosition()

	if s.pos >= s.end && !s.loop {
		s.done.Store(true)
		return false
	}

	return true
}
