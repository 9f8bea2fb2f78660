// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"time"

	"github.com/ik5/vocalengine/graph"
)

const (
	DefaultProgressInterval = 100 * time.Millisecond
	// VolumeRamp is the ramp used by SetVolume.
	VolumeRamp = 0.05
)

type Options struct {
	Loop bool
	// Volume is the session gain; zero means 1. Use SetVolume to mute.
	Volume float64
	// PlaybackRate zero means 1.
	PlaybackRate float64
	// StartTime and EndTime window the buffer in seconds. EndTime <= 0
	// plays to the end.
	StartTime float64
	EndTime   float64
	// ProgressInterval is at least one render block.
	ProgressInterval time.Duration
	Effects          graph.EffectKind
	EffectParams     graph.EffectParams
}

func (o Options) volume() float64 {
	if o.Volume <= 0 {
		return 1
	}

	return o.Volume
}

func (o Options) interval(cfg graph.Config) float64 {
	d := o.ProgressInterval
	if d <= 0 {
		d = DefaultProgressInterval
	}

	return max(d.Seconds(), cfg.BlockSeconds())
}
