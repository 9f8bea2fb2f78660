// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"github.com/ik5/vocalengine/internal/audiotest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type testCtx struct {
	rate, channels, block int
	now                   float64
}

func (c *testCtx) SampleRate() int { return c.rate }
func (c *testCtx) Channels() int   { return c.channels }
func (c *testCtx) BlockSize() int  { return c.block }
func (c *testCtx) Now() float64    { return c.now }

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

// constVoice emits value for frames frames, then finishes.
type constVoice struct {
	value  float32
	frames int
}

func (v *constVoice) Process(dst []float32, clock Clock) bool {
	n := min(len(dst)/clock.Channels, v.frames)
	for i := range n * clock.Channels {
		dst[i] = v.value
	}
	v.frames -= n

	return v.frames > 0
}

func newManualEngine(cfg Config) (*Engine, *audiotest.ManualOutput) {
	out := audiotest.NewManualOutput(cfg.Channels)
	e, err := New(cfg, func(OutputConfig) (Device, error) { return out, nil }, nullLogger())
	if err != nil {
		panic(err)
	}

	return e, out
}
