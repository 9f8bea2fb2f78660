// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"sync"
)

// DefaultAnalyserSize matches the usual 2048-point analysis window.
const DefaultAnalyserSize = 2048

// Analyser keeps the most recent window of mono-summed samples for metering.
// It is a pass-through node; readers may call Peak, RMS and TimeDomain from
// any goroutine.
type Analyser struct {
	mu     sync.Mutex
	ring   []float32
	pos    int
	filled bool
}

func NewAnalyser(size int) *Analyser {
	if size <= 0 {
		size = DefaultAnalyserSize
	}

	return &Analyser{ring: make([]float32, size)}
}

func (a *Analyser) Size() int { return len(a.ring) }

func (a *Analyser) Process(buf []float32, clock Clock) {
	a.Write(buf, clock.Channels)
}

// Write feeds interleaved samples without a render clock, as the recorder
// does with captured audio.
func (a *Analyser) Write(buf []float32, channels int) {
	if channels <= 0 {
		return
	}

	inv := 1 / float32(channels)
	frames := len(buf) / channels

	a.mu.Lock()
	defer a.mu.Unlock()

	for f := range frames {
		var sum float32
		for c := range channels {
			sum += buf[f*channels+c]
		}

		a.ring[a.pos] = sum * inv
		a.pos++
		if a.pos == len(a.ring) {
			a.pos = 0
			a.filled = true
		}
	}
}

// TimeDomain copies the window, oldest sample first, into dst and returns
// the number of samples copied.
func (a *Analyser) TimeDomain(dst []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.filled {
		return copy(dst, a.ring[:a.pos])
	}

	n := copy(dst, a.ring[a.pos:])
	return n + copy(dst[n:], a.ring[:a.pos])
}

func (a *Analyser) Peak() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var peak float32
	for _, s := range a.window() {
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}

	return peak
}

func (a *Analyser) RMS() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := a.window()
	if len(w) == 0 {
		return 0
	}

	var sum float64
	for _, s := range w {
		sum += float64(s) * float64(s)
	}

	return float32(math.Sqrt(sum / float64(len(w))))
}

// Reset clears the window.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.ring)
	a.pos = 0
	a.filled = false
}

func (a *Analyser) window() []float32 {
	if a.filled {
		return a.ring
	}

	return a.ring[:a.pos]
}
