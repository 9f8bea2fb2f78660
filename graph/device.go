// SPDX-License-Identifier: EPL-2.0

package graph

// Device is a platform output. Start hands it the render callback, which the
// device calls from its own thread with interleaved float32 buffers of any
// length.
type Device interface {
	Start(render func(out []float32)) error
	Close() error
}

// OutputConfig is what the engine asks of an output device.
type OutputConfig struct {
	SampleRate int
	Channels   int
	// PeriodFrames is a hint; devices may call render with other sizes.
	PeriodFrames int
}

// OutputFactory opens an output device. Returning an error that wraps
// ErrUnsupportedPlatform marks the platform as having no audio.
type OutputFactory func(cfg OutputConfig) (Device, error)
