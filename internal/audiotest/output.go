// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"errors"
	"sync"
)

// ManualOutput is an output device that renders only when Pump is called,
// which makes the audio clock fully deterministic in tests.
type ManualOutput struct {
	channels int

	mu      sync.Mutex
	render  func(out []float32)
	started int
	closed  bool
}

func NewManualOutput(channels int) *ManualOutput {
	return &ManualOutput{channels: channels}
}

func (o *ManualOutput) Start(render func(out []float32)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errors.New("audiotest: output closed")
	}
	o.render = render
	o.started++

	return nil
}

func (o *ManualOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.render = nil

	return nil
}

// Starts reports how many times Start was called.
func (o *ManualOutput) Starts() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.started
}

func (o *ManualOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.closed
}

// Pump pulls frames interleaved frames from the engine and returns them.
// It returns nil when the device has not been started or is closed.
func (o *ManualOutput) Pump(frames int) []float32 {
	o.mu.Lock()
	render := o.render
	o.mu.Unlock()

	if render == nil {
		return nil
	}

	out := make([]float32, frames*o.channels)
	render(out)

	return out
}

// PumpSeconds pumps in chunks of chunk frames until seconds of audio at rate
// have been rendered.
func (o *ManualOutput) PumpSeconds(rate int, seconds float64, chunk int) {
	total := int(seconds * float64(rate))
	for done := 0; done < total; done += chunk {
		o.Pump(min(chunk, total-done))
	}
}
