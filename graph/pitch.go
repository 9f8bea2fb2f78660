// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"sync/atomic"

	"github.com/ik5/vocalengine/utils"
)

// MaxSemitones bounds the pitch shifter range.
const MaxSemitones = 12.0

const (
	pitchWindowSeconds = 0.05
	pitchQueue         = 16
)

type pitchMsg struct {
	semitones float64
	seconds   float64
}

// PitchShifter shifts pitch without changing duration using two crossfaded
// read heads sweeping a delay line. Control code talks to it only through
// SetSemitones messages; all processing state belongs to the render thread.
type PitchShifter struct {
	msgs     chan pitchMsg
	disposed atomic.Bool
	// last value posted, for readers on the control side
	posted atomic.Uint64

	rate     int
	block    int
	window   int
	lines    [][]float32
	writePos int
	phase    float64

	current float64
	target  float64
	step    float64
}

func NewPitchShifter(ctx Context, semitones float64) *PitchShifter {
	window := max(int(pitchWindowSeconds*float64(ctx.SampleRate())), 64)
	semitones = utils.Clamp(semitones, -MaxSemitones, MaxSemitones)

	p := &PitchShifter{
		msgs:    make(chan pitchMsg, pitchQueue),
		rate:    ctx.SampleRate(),
		block:   ctx.BlockSize(),
		window:  window,
		lines:   make([][]float32, ctx.Channels()),
		current: semitones,
		target:  semitones,
	}
	for ch := range p.lines {
		p.lines[ch] = make([]float32, window*2)
	}
	p.posted.Store(math.Float64bits(semitones))

	return p
}

// SetSemitones asks the shifter to glide to target over seconds. When the
// queue is full the oldest pending request is dropped.
func (p *PitchShifter) SetSemitones(target, seconds float64) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	if !utils.Finite(target) {
		return ErrInvalidRamp
	}

	msg := pitchMsg{
		semitones: utils.Clamp(target, -MaxSemitones, MaxSemitones),
		seconds:   seconds,
	}
	p.posted.Store(math.Float64bits(msg.semitones))

	for {
		select {
		case p.msgs <- msg:
			return nil
		default:
		}

		select {
		case <-p.msgs:
		default:
		}
	}
}

// Semitones is the last requested shift.
func (p *PitchShifter) Semitones() float64 {
	return math.Float64frombits(p.posted.Load())
}

// Dispose stops the shifter from accepting messages; Process becomes a
// pass-through.
func (p *PitchShifter) Dispose() { p.disposed.Store(true) }

func (p *PitchShifter) drain() {
	for {
		select {
		case m := <-p.msgs:
			p.target = m.semitones
			blocks := math.Max(1, math.Round(m.seconds*float64(p.rate)/float64(p.block)))
			p.step = (p.target - p.current) / blocks
		default:
			return
		}
	}
}

func (p *PitchShifter) Process(buf []float32, clock Clock) {
	if p.disposed.Load() {
		return
	}

	p.drain()

	start := p.current
	if p.current != p.target {
		p.current += p.step
		if (p.step > 0 && p.current > p.target) || (p.step < 0 && p.current < p.target) || p.step == 0 {
			p.current = p.target
		}
	}

	channels := min(clock.Channels, len(p.lines))
	frames := len(buf) / clock.Channels
	size := len(p.lines[0])

	if start == 0 && p.current == 0 {
		// Keep the delay line warm so a later shift starts from real audio.
		for f := range frames {
			for ch := range channels {
				p.lines[ch][(p.writePos+f)%size] = buf[f*clock.Channels+ch]
			}
		}
		p.writePos = (p.writePos + frames) % size
		return
	}

	w := float64(p.window)
	for f := range frames {
		semis := start + (p.current-start)*float64(f)/float64(frames)
		ratio := math.Exp2(semis / 12)

		p.phase += (1 - ratio) / w
		p.phase -= math.Floor(p.phase)

		phase2 := p.phase + 0.5
		phase2 -= math.Floor(phase2)

		g1 := float32(math.Sin(math.Pi * p.phase))
		g2 := float32(math.Sin(math.Pi * phase2))

		for ch := range channels {
			line := p.lines[ch]
			line[p.writePos] = buf[f*clock.Channels+ch]

			a := readDelay(line, p.writePos, p.phase*w)
			b := readDelay(line, p.writePos, phase2*w)
			buf[f*clock.Channels+ch] = g1*a + g2*b
		}

		p.writePos++
		if p.writePos == size {
			p.writePos = 0
		}
	}
}

// readDelay reads line delay samples behind pos with linear interpolation.
func readDelay(line []float32, pos int, delay float64) float32 {
	size := len(line)
	d := int(delay)
	frac := float32(delay - float64(d))

	i0 := ((pos-d)%size + size) % size
	i1 := ((pos-d-1)%size + size) % size

	return line[i0]*(1-frac) + line[i1]*frac
}
