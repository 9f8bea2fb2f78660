// SPDX-License-Identifier: EPL-2.0

package vocalengine

import (
	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/cache"
	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/recorder"
)

// Option customises New.
type Option func(*options)

type options struct {
	log      logrus.FieldLogger
	output   graph.OutputFactory
	capture  recorder.Opener
	fetcher  cache.Fetcher
	encoder  recorder.Encoder
	heap     cache.HeapReader
	registry *audio.Registry
}

// WithLogger replaces the logger built from config.Config.LogLevel.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithOutput sets the audio output. Without one, playback fails with
// ErrUnsupportedPlatform; mixing and recording still work.
func WithOutput(f graph.OutputFactory) Option {
	return func(o *options) { o.output = f }
}

// WithCapture sets the microphone opener. Without one, StartRecording fails
// with ErrUnsupportedPlatform.
func WithCapture(open recorder.Opener) Option {
	return func(o *options) { o.capture = open }
}

// WithFetcher replaces the default http/https/file router.
func WithFetcher(f cache.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithEncoder replaces the 16-bit WAV recording encoder.
func WithEncoder(enc recorder.Encoder) Option {
	return func(o *options) { o.encoder = enc }
}

// WithHeapReader replaces the runtime heap reader used by the memory
// governor.
func WithHeapReader(read func() uint64) Option {
	return func(o *options) { o.heap = read }
}

// WithRegistry replaces the built-in decoder registry.
func WithRegistry(r *audio.Registry) Option {
	return func(o *options) { o.registry = r }
}
