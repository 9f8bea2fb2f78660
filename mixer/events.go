// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"time"

	"github.com/ik5/vocalengine/events"
)

type Kind int

const (
	Complete Kind = iota + 1
	Failed
)

func (k Kind) String() string {
	switch k {
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}

	return "unknown"
}

type Event struct {
	Kind     Kind
	Duration time.Duration
	Bytes    int
	Err      error
}

func (Event) Topic() events.Topic { return events.TopicMix }
