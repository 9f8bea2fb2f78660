// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/utils"
)

// EffectKind selects the nodes of an effect chain.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectPitchShift
	EffectReverb
	EffectPitchReverb
)

func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectPitchShift:
		return "pitch"
	case EffectReverb:
		return "reverb"
	case EffectPitchReverb:
		return "pitch+reverb"
	}

	return fmt.Sprintf("EffectKind(%d)", int(k))
}

func (k EffectKind) hasPitch() bool  { return k == EffectPitchShift || k == EffectPitchReverb }
func (k EffectKind) hasReverb() bool { return k == EffectReverb || k == EffectPitchReverb }

// EffectParams are the initial values of a chain's nodes.
type EffectParams struct {
	Semitones float64
	ReverbWet float64
	// ReverbDry defaults to 1 when zero and ReverbWet is below 1.
	ReverbDry float64
}

// Chain is a disposable effect subgraph. After Dispose it passes audio
// through untouched, so a session holding a stale chain never goes silent.
type Chain struct {
	kind     EffectKind
	pitch    *PitchShifter
	reverb   *Convolver
	nodes    []Node
	disposed atomic.Bool
}

// NewChain builds a chain for ctx. ir is required for reverb kinds.
func NewChain(ctx Context, kind EffectKind, p EffectParams, ir *audio.Buffer) (*Chain, error) {
	if kind < EffectNone || kind > EffectPitchReverb {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEffect, int(kind))
	}

	c := &Chain{kind: kind}

	if kind.hasPitch() {
		c.pitch = NewPitchShifter(ctx, p.Semitones)
		c.nodes = append(c.nodes, c.pitch)
	}

	if kind.hasReverb() {
		if ir == nil {
			return nil, fmt.Errorf("%w: reverb needs an impulse response", ErrUnknownEffect)
		}

		dry := p.ReverbDry
		if dry == 0 && p.ReverbWet < 1 {
			dry = 1
		}
		c.reverb = NewConvolver(ctx, ir, utils.Clamp(p.ReverbWet, 0, 1), dry)
		c.nodes = append(c.nodes, c.reverb)
	}

	return c, nil
}

func (c *Chain) Kind() EffectKind { return c.kind }

// Pitch is nil unless the kind includes pitch shifting.
func (c *Chain) Pitch() *PitchShifter { return c.pitch }

// Reverb is nil unless the kind includes reverb.
func (c *Chain) Reverb() *Convolver { return c.reverb }

func (c *Chain) Process(buf []float32, clock Clock) {
	if c.disposed.Load() {
		return
	}

	for _, n := range c.nodes {
		n.Process(buf, clock)
	}
}

// Dispose tears the chain down. It is safe to call more than once.
func (c *Chain) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}

	if c.pitch != nil {
		c.pitch.Dispose()
	}
}

func (c *Chain) Disposed() bool { return c.disposed.Load() }
