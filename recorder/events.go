// SPDX-License-Identifier: EPL-2.0

package recorder

import (
	"time"

	"github.com/ik5/vocalengine/events"
)

type Kind int

const (
	Started Kind = iota + 1
	Paused
	Resumed
	Stopped
	Failed
)

func (k Kind) String() string {
	switch k {
	case Started:
		return "started"
	case Paused:
		return "paused"
	case Resumed:
		return "resumed"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	}

	return "unknown"
}

type Event struct {
	RecordingID string
	Kind        Kind
	Duration    time.Duration
	Err         error
}

func (Event) Topic() events.Topic { return events.TopicRecording }
