// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"sync"

	"github.com/ik5/vocalengine/utils"
)

type ramp struct {
	startTime, endTime float64
	from, to           float64
	exponential        bool
}

func (r ramp) at(t float64) float64 {
	if t >= r.endTime {
		return r.to
	}
	if t <= r.startTime {
		return r.from
	}

	x := (t - r.startTime) / (r.endTime - r.startTime)
	if r.exponential {
		return r.from * math.Pow(r.to/r.from, x)
	}

	return r.from + (r.to-r.from)*x
}

// Param is an automatable node parameter. Control code schedules ramps;
// the render thread samples values at block boundaries.
type Param struct {
	name     string
	min, max float64
	now      func() float64

	mu    sync.Mutex
	value float64
	ramp  *ramp
}

// NewParam returns a parameter clamped to [min, max] whose ramps start at
// the time now reports.
func NewParam(name string, value, min, max float64, now func() float64) *Param {
	return &Param{
		name:  name,
		min:   min,
		max:   max,
		now:   now,
		value: utils.Clamp(value, min, max),
	}
}

func (p *Param) Name() string { return p.name }

func (p *Param) Range() (float64, float64) { return p.min, p.max }

// SetValue jumps to v, cancelling any ramp.
func (p *Param) SetValue(v float64) {
	if !utils.Finite(v) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.value = utils.Clamp(v, p.min, p.max)
	p.ramp = nil
}

// LinearRampTo moves linearly from the current value to target over seconds.
func (p *Param) LinearRampTo(target, seconds float64) {
	p.schedule(target, seconds, false)
}

// ExponentialRampTo ramps geometrically. Both the current value and target
// must be positive.
func (p *Param) ExponentialRampTo(target, seconds float64) error {
	if target <= 0 || p.Value() <= 0 {
		return ErrInvalidRamp
	}

	p.schedule(target, seconds, true)

	return nil
}

func (p *Param) schedule(target, seconds float64, exponential bool) {
	if !utils.Finite(target) || !utils.Finite(seconds) {
		return
	}

	target = utils.Clamp(target, p.min, p.max)
	t := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	from := p.valueAtLocked(t)
	if seconds <= 0 {
		p.value = target
		p.ramp = nil
		return
	}

	p.value = target
	p.ramp = &ramp{
		startTime:   t,
		endTime:     t + seconds,
		from:        from,
		to:          target,
		exponential: exponential,
	}
}

// ValueAt returns the value at audio-clock time t. It does not modify any
// scheduled ramp.
func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.valueAtLocked(t)
}

func (p *Param) valueAtLocked(t float64) float64 {
	if p.ramp == nil {
		return p.value
	}

	return p.ramp.at(t)
}

// Value is the value now.
func (p *Param) Value() float64 { return p.ValueAt(p.now()) }

// Target is the value the parameter settles at once any ramp completes.
func (p *Param) Target() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.value
}

// Ramping reports whether a ramp is still in progress at time t.
func (p *Param) Ramping(t float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ramp != nil && t < p.ramp.endTime
}

// blockValues samples the parameter at both ends of a block.
func (p *Param) blockValues(clock Clock, frames int) (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := clock.TimeAt(frames)
	from, to := p.valueAtLocked(clock.Time()), p.valueAtLocked(end)
	// The render clock only moves forward, so a ramp it has passed is done.
	if p.ramp != nil && end >= p.ramp.endTime {
		p.ramp = nil
	}

	return from, to
}

// ApplyRamp moves p to target without a hard jump: exponentially when both
// ends are positive, linearly otherwise. A non-positive duration is
// stretched to one render block of ctx.
func ApplyRamp(ctx Context, p *Param, target, seconds float64) error {
	if !utils.Finite(target) {
		return ErrInvalidRamp
	}

	minimum := float64(ctx.BlockSize()) / float64(ctx.SampleRate())
	if !utils.Finite(seconds) || seconds < minimum {
		seconds = minimum
	}

	if target > 0 && p.Value() > 0 {
		return p.ExponentialRampTo(target, seconds)
	}

	p.LinearRampTo(target, seconds)

	return nil
}
