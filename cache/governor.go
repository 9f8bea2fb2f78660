// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"context"
	"runtime"
	"time"

	"github.com/ik5/vocalengine/events"
	"github.com/sirupsen/logrus"
)

// HeapReader reports current heap usage in bytes.
type HeapReader func() uint64

// RuntimeHeap reads HeapAlloc from the Go runtime.
func RuntimeHeap() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return m.HeapAlloc
}

// Governor polls heap usage and reacts to pressure.
type Governor struct {
	cache *Cache
	read  HeapReader
	sink  events.Sink
	log   logrus.FieldLogger

	// OnPressure runs when the threshold is crossed. When nil the governor
	// trims the cache itself.
	OnPressure func()
}

func NewGovernor(c *Cache, read HeapReader, sink events.Sink, log logrus.FieldLogger) *Governor {
	if read == nil {
		read = RuntimeHeap
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Governor{
		cache: c,
		read:  read,
		sink:  events.OrDiscard(sink),
		log:   log,
	}
}

// Check polls once and reports whether pressure was signalled.
func (g *Governor) Check() bool {
	heap := g.read()
	threshold := g.cache.cfg.HeapThreshold
	if heap <= threshold {
		return false
	}

	g.log.WithFields(logrus.Fields{
		"function":   "Check",
		"heap_bytes": heap,
		"threshold":  threshold,
		"cached":     g.cache.Bytes(),
	}).Warn("Heap above threshold")

	g.sink.Publish(MemoryWarning{HeapBytes: heap, Threshold: threshold})

	if g.OnPressure != nil {
		g.OnPressure()
	} else {
		g.cache.TrimForPressure()
	}

	return true
}

// Run polls every MemoryPollInterval until ctx ends.
func (g *Governor) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cache.cfg.MemoryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Check()
		}
	}
}
