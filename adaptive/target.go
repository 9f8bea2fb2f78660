// SPDX-License-Identifier: EPL-2.0

package adaptive

import (
	"errors"
	"fmt"
	"math"

	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/playback"
	"github.com/ik5/vocalengine/utils"
)

// SessionTarget drives a playback session: tempo on the playback rate,
// volume on the session gain, key on a pitch shifter and effects on the
// reverb wet level.
type SessionTarget struct {
	session *playback.Session
	maxWet  float64
}

// NewSessionTarget rebuilds the session's chain with pitch shift and
// reverb set to initial, so later ramps have nodes to move.
func NewSessionTarget(s *playback.Session, maxReverbWet float64, initial State) (*SessionTarget, error) {
	t := &SessionTarget{session: s, maxWet: utils.Clamp(maxReverbWet, 0, 1)}
	if err := t.Rebuild(initial); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *SessionTarget) Session() *playback.Session { return t.session }

// semitones keeps the heard key at state.KeySemitoneShift: a playback
// rate r already shifts pitch by 12*log2(r).
func (t *SessionTarget) semitones(st State) float64 {
	shift := st.KeySemitoneShift
	if st.TempoMultiplier > 0 {
		shift -= 12 * math.Log2(st.TempoMultiplier)
	}

	return utils.Clamp(shift, -graph.MaxSemitones, graph.MaxSemitones)
}

func (t *SessionTarget) params(st State) graph.EffectParams {
	wet := st.EffectsIntensity * t.maxWet

	return graph.EffectParams{
		Semitones: t.semitones(st),
		ReverbWet: wet,
		ReverbDry: 1,
	}
}

func (t *SessionTarget) Ramp(st State, seconds float64) error {
	s := t.session
	e := s.Engine()

	errs := []error{
		e.ApplyRamp(s.PlaybackRate(), st.TempoMultiplier, seconds),
		s.SetVolumeScale(st.VolumeScale, seconds),
	}

	chain := s.Chain()
	if p := chain.Pitch(); p != nil {
		errs = append(errs, p.SetSemitones(t.semitones(st), seconds))
	} else {
		errs = append(errs, fmt.Errorf("%w: no pitch shifter", graph.ErrUnknownEffect))
	}
	if r := chain.Reverb(); r != nil {
		errs = append(errs, e.ApplyRamp(r.Wet(), st.EffectsIntensity*t.maxWet, seconds))
	}

	return errors.Join(errs...)
}

// Rebuild replaces the effect chain at the new key and effects values.
// Rate and gain are not part of the chain and move over one block.
func (t *SessionTarget) Rebuild(st State) error {
	s := t.session
	e := s.Engine()

	if err := s.RebuildEffects(graph.EffectPitchReverb, t.params(st)); err != nil {
		return err
	}

	return errors.Join(
		e.ApplyRamp(s.PlaybackRate(), st.TempoMultiplier, 0),
		s.SetVolumeScale(st.VolumeScale, 0),
	)
}
