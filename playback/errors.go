// SPDX-License-Identifier: EPL-2.0

package playback

import "errors"

var (
	ErrUnknownSession = errors.New("unknown playback session")
	ErrInvalidBuffer  = errors.New("invalid playback buffer")
	ErrInvalidVolume  = errors.New("invalid volume")
	ErrNoLoader       = errors.New("no source loader configured")
)
