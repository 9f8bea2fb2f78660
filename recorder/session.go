// SPDX-License-Identifier: EPL-2.0

package recorder

import (
	"math"
	"sync"
	"time"

	"github.com/ik5/vocalengine/graph"
)

type session struct {
	id       string
	cfg      StreamConfig
	stream   Stream
	analyser *graph.Analyser

	resumedAt time.Time
	active    time.Duration

	pending  []float32
	chunks   [][]byte
	frames   int64
	encErr   error
	envelope []float32
	peaks    *peakRing

	quit chan struct{}
	wg   sync.WaitGroup
}

func newSession(id string, cfg StreamConfig, peaks int, a *graph.Analyser, now time.Time) *session {
	return &session{
		id:        id,
		cfg:       cfg,
		analyser:  a,
		resumedAt: now,
		peaks:     newPeakRing(peaks),
		quit:      make(chan struct{}),
	}
}

func (s *session) duration() time.Duration {
	return time.Duration(float64(s.frames) / float64(s.cfg.SampleRate) * float64(time.Second))
}

// waveform reduces the envelope to n points by taking the max of each bin.
func (s *session) waveform(n int) []float32 {
	if len(s.envelope) == 0 {
		return nil
	}
	if len(s.envelope) <= n {
		return append([]float32(nil), s.envelope...)
	}

	out := make([]float32, n)
	for i := range out {
		lo := i * len(s.envelope) / n
		hi := (i + 1) * len(s.envelope) / n
		for _, v := range s.envelope[lo:hi] {
			out[i] = max(out[i], v)
		}
	}

	return out
}

// envelopeFrames is the number of frames behind one envelope point, 10ms.
func envelopeFrames(rate int) int {
	return max(rate/100, 1)
}

func chunkEnvelope(samples []float32, channels, span int) []float32 {
	frames := len(samples) / channels

	out := make([]float32, 0, (frames+span-1)/span)
	for lo := 0; lo < frames; lo += span {
		hi := min(lo+span, frames)

		var peak float32
		for _, v := range samples[lo*channels : hi*channels] {
			peak = max(peak, float32(math.Abs(float64(v))))
		}
		out = append(out, peak)
	}

	return out
}

type peakRing struct {
	buf    []float32
	pos    int
	filled bool
}

func newPeakRing(n int) *peakRing {
	return &peakRing{buf: make([]float32, n)}
}

func (r *peakRing) push(v float32) {
	r.buf[r.pos] = v
	r.pos++
	if r.pos == len(r.buf) {
		r.pos = 0
		r.filled = true
	}
}

// ordered returns the history oldest first.
func (r *peakRing) ordered() []float32 {
	if !r.filled {
		return append([]float32(nil), r.buf[:r.pos]...)
	}

	out := make([]float32, 0, len(r.buf))
	out = append(out, r.buf[r.pos:]...)

	return append(out, r.buf[:r.pos]...)
}
