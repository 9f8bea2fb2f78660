// SPDX-License-Identifier: EPL-2.0

package recorder

import "context"

type StreamConfig struct {
	SampleRate int
	Channels   int
}

// Stream is an open capture device. onData receives interleaved samples
// on the device goroutine and must not be retained.
type Stream interface {
	Start(onData func(samples []float32)) error
	Stop() error
	Close() error
}

// Opener requests access to a capture device. A denied request should
// return an error wrapping ErrPermissionDenied and a missing backend one
// wrapping graph.ErrUnsupportedPlatform. Start passes every error through.
type Opener func(ctx context.Context, cfg StreamConfig) (Stream, error)
