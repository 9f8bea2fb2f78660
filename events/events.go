// SPDX-License-Identifier: EPL-2.0

package events

// Topic classifies an Event without a type switch.
type Topic int

const (
	TopicRecording Topic = iota + 1
	TopicPlayback
	TopicLoad
	TopicMix
	TopicAdaptation
	TopicMemory
	TopicCleanup
)

func (t Topic) String() string {
	switch t {
	case TopicRecording:
		return "recording"
	case TopicPlayback:
		return "playback"
	case TopicLoad:
		return "load"
	case TopicMix:
		return "mix"
	case TopicAdaptation:
		return "adaptation"
	case TopicMemory:
		return "memory"
	case TopicCleanup:
		return "cleanup"
	}

	return "unknown"
}

// Event is implemented by the concrete event types of each component
// (recorder.Event, playback.Event, cache.LoadEvent and so on).
type Event interface {
	Topic() Topic
}

// Sink receives events. Implementations must not block: publishers include
// the audio render callback.
type Sink interface {
	Publish(e Event)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}

	return s
}
