// SPDX-License-Identifier: EPL-2.0

package adaptive

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/events"
)

// Target receives adaptation states. Ramp moves parameters smoothly over
// seconds; Rebuild replaces the effect chain to reach state.
type Target interface {
	Ramp(state State, seconds float64) error
	Rebuild(state State) error
}

// Controller is safe for concurrent use. State changes are applied to the
// target in the order samples arrive.
type Controller struct {
	cfg  Config
	sink events.Sink
	log  logrus.FieldLogger

	mu      sync.Mutex
	enabled bool
	window  []Sample
	next    int
	state   State
	target  Target
}

func New(cfg Config, sink events.Sink, log logrus.FieldLogger) *Controller {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Controller{
		cfg:     cfg,
		sink:    events.OrDiscard(sink),
		log:     log,
		enabled: true,
		window:  make([]Sample, 0, cfg.WindowSize),
		state:   nominal(cfg),
	}
}

func (c *Controller) Config() Config { return c.cfg }

// Attach directs future states to t, replacing any previous target.
func (c *Controller) Attach(t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.target = t
}

func (c *Controller) Detach() {
	c.Attach(nil)
}

func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = enabled

	c.log.WithFields(logrus.Fields{
		"function": "SetEnabled",
		"enabled":  enabled,
	}).Debug("Adaptation toggled")
}

func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.enabled
}

// State returns the current adjustments.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Averages are the rolling means of the current window.
func (c *Controller) Averages() Averages {
	c.mu.Lock()
	defer c.mu.Unlock()

	return average(c.window)
}

// Adapt folds s into the window and applies the resulting state. Samples
// with non-finite scores and samples arriving while disabled leave the
// state unchanged.
func (c *Controller) Adapt(s Sample) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return c.state
	}

	clean, ok := s.sanitize()
	if !ok {
		c.log.WithFields(logrus.Fields{
			"function": "Adapt",
		}).Debug("Ignoring malformed sample")
		return c.state
	}

	c.push(clean)

	a := average(c.window)
	prev := c.state
	c.state = step(c.cfg, prev, a)
	c.applyLocked(prev, a)

	return c.state
}

func (c *Controller) push(s Sample) {
	if len(c.window) < c.cfg.WindowSize {
		c.window = append(c.window, s)
		return
	}

	c.window[c.next] = s
	c.next = (c.next + 1) % c.cfg.WindowSize
}

// Reset clears the window and returns the target to the nominal state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window = c.window[:0]
	c.next = 0

	prev := c.state
	c.state = nominal(c.cfg)
	c.applyLocked(prev, Averages{})

	c.log.WithFields(logrus.Fields{
		"function": "Reset",
	}).Debug("Adaptation reset")
}

// applyLocked sends the current state to the target: a rebuild when key or
// effects jumped, otherwise a ramp.
func (c *Controller) applyLocked(prev State, a Averages) {
	ev := Event{Previous: prev, State: c.state, Averages: a}

	if c.target != nil && c.state != prev {
		var err error
		if c.significant(prev, c.state) {
			ev.Applied = AppliedRebuild
			err = c.target.Rebuild(c.state)
		} else {
			ev.Applied = AppliedRamp
			err = c.target.Ramp(c.state, c.cfg.RampDuration.Seconds())
		}

		if err != nil {
			ev.Err = err
			c.log.WithFields(logrus.Fields{
				"function": "apply",
				"applied":  ev.Applied.String(),
				"error":    err.Error(),
			}).Warn("Adaptation target rejected state")
		}
	}

	c.log.WithFields(logrus.Fields{
		"function": "apply",
		"tempo":    c.state.TempoMultiplier,
		"key":      c.state.KeySemitoneShift,
		"volume":   c.state.VolumeScale,
		"effects":  c.state.EffectsIntensity,
		"applied":  ev.Applied.String(),
	}).Debug("Adaptation state")

	c.sink.Publish(ev)
}

func (c *Controller) significant(prev, next State) bool {
	return math.Abs(next.KeySemitoneShift-prev.KeySemitoneShift) >= c.cfg.SignificantKeyDelta ||
		math.Abs(next.EffectsIntensity-prev.EffectsIntensity) >= c.cfg.SignificantEffectsDelta
}
