// SPDX-License-Identifier: EPL-2.0

package malgodev

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/recorder"
)

func TestNullBackendOutput(t *testing.T) {
	log, _ := test.NewNullLogger()

	c, err := NewContext(log, malgo.BackendNull)
	if err != nil {
		t.Skipf("miniaudio unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	dev, err := c.Output(graph.OutputConfig{SampleRate: 48000, Channels: 2, PeriodFrames: 480})
	if err != nil {
		t.Skipf("null playback device unavailable: %v", err)
	}

	var calls atomic.Int64
	require.NoError(t, dev.Start(func(out []float32) {
		calls.Add(1)
		for i := range out {
			out[i] = 0.25
		}
	}))

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, dev.Close())
}

func TestCaptureErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		denied      bool
		unsupported bool
	}{
		{"access denied", malgo.ErrAccessDenied, true, false},
		{"wrapped access denied", fmt.Errorf("init: %w", malgo.ErrAccessDenied), true, false},
		{"no device", malgo.ErrNoDevice, false, true},
		{"no backend", malgo.ErrNoBackend, false, true},
		{"busy", malgo.ErrBusy, false, false},
		{"backend open failure", malgo.ErrFailedToOpenBackendDevice, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := captureError(tt.err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.denied, errors.Is(err, recorder.ErrPermissionDenied))
			assert.Equal(t, tt.unsupported, errors.Is(err, graph.ErrUnsupportedPlatform))
		})
	}
}
