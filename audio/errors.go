// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")

	// ErrUnknownFormat indicates no registered decoder recognised the payload.
	ErrUnknownFormat = errors.New("unknown audio format")

	// ErrEmptyBuffer indicates a buffer without channels or frames.
	ErrEmptyBuffer = errors.New("empty audio buffer")

	// ErrInvalidSampleRate indicates a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)
