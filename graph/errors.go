// SPDX-License-Identifier: EPL-2.0

package graph

import "errors"

var (
	// ErrUnsupportedPlatform is returned when no audio output is available.
	// Every operation that needs the running graph surfaces this same error.
	ErrUnsupportedPlatform = errors.New("audio output unsupported on this platform")
	ErrClosed              = errors.New("audio graph closed")
	ErrNotReady            = errors.New("audio graph not started")
)

var (
	ErrUnknownEffect = errors.New("unknown effect kind")
	ErrInvalidRamp   = errors.New("exponential ramp needs positive start and target")
	ErrDisposed      = errors.New("node disposed")
	ErrInvalidConfig = errors.New("invalid graph configuration")
)
