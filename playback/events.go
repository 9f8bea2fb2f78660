// SPDX-License-Identifier: EPL-2.0

package playback

import "github.com/ik5/vocalengine/events"

type Kind int

const (
	Progress Kind = iota + 1
	Ended
	Stopped
	Started
	Failed
)

func (k Kind) String() string {
	switch k {
	case Progress:
		return "progress"
	case Ended:
		return "ended"
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	case Failed:
		return "failed"
	}

	return "unknown"
}

// Event reports session progress on the audio clock.
type Event struct {
	ID   SessionID
	Kind Kind
	// Position is the playhead in buffer seconds.
	Position float64
	// Elapsed is audio-clock time played since the session started,
	// pauses excluded.
	Elapsed float64
	// Duration is the length of the playback window in buffer seconds.
	Duration float64
	// Fraction is how far Position is through the window, in [0, 1].
	Fraction float64
	// Err is set on Failed events.
	Err error
}

// Terminal reports whether no further events follow for the session.
func (k Kind) Terminal() bool {
	return k == Ended || k == Stopped || k == Failed
}

func newEvent(id SessionID, kind Kind, position, elapsed, start, end float64) Event {
	ev := Event{
		ID:       id,
		Kind:     kind,
		Position: position,
		Elapsed:  elapsed,
		Duration: end - start,
	}
	if ev.Duration > 0 {
		ev.Fraction = min(max((position-start)/ev.Duration, 0), 1)
	}

	return ev
}

func (Event) Topic() events.Topic { return events.TopicPlayback }
