// SPDX-License-Identifier: EPL-2.0

package adaptive

import "github.com/ik5/vocalengine/events"

// Applied says how a state change reached the target.
type Applied int

const (
	AppliedNone Applied = iota
	AppliedRamp
	AppliedRebuild
)

func (a Applied) String() string {
	switch a {
	case AppliedNone:
		return "none"
	case AppliedRamp:
		return "ramp"
	case AppliedRebuild:
		return "rebuild"
	}

	return "unknown"
}

type Event struct {
	Previous State
	State    State
	Averages Averages
	Applied  Applied
	// Err is a target failure; it is logged and never returned.
	Err error
}

func (Event) Topic() events.Topic { return events.TopicAdaptation }
