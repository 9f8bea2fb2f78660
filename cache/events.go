// SPDX-License-Identifier: EPL-2.0

package cache

import "github.com/ik5/vocalengine/events"

type LoadKind int

const (
	LoadStarted LoadKind = iota + 1
	LoadHit
	LoadComplete
	LoadFailed
	LoadCancelled
)

func (k LoadKind) String() string {
	switch k {
	case LoadStarted:
		return "started"
	case LoadHit:
		return "hit"
	case LoadComplete:
		return "complete"
	case LoadFailed:
		return "failed"
	case LoadCancelled:
		return "cancelled"
	}

	return "unknown"
}

type LoadEvent struct {
	SourceID string
	Kind     LoadKind
	Bytes    int64
	Err      error
}

func (LoadEvent) Topic() events.Topic { return events.TopicLoad }

// MemoryWarning is emitted when heap usage crosses the threshold.
type MemoryWarning struct {
	HeapBytes uint64
	Threshold uint64
}

func (MemoryWarning) Topic() events.Topic { return events.TopicMemory }

// ResourceCleanup reports entries dropped from the cache.
type ResourceCleanup struct {
	Reason  string
	Entries int
	Bytes   int64
}

func (ResourceCleanup) Topic() events.Topic { return events.TopicCleanup }
