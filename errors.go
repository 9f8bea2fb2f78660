// SPDX-License-Identifier: EPL-2.0

package vocalengine

import (
	"errors"

	"github.com/ik5/vocalengine/cache"
	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/mixer"
	"github.com/ik5/vocalengine/playback"
	"github.com/ik5/vocalengine/recorder"
)

// Error kinds surfaced by the engine. They are the component sentinels, so
// errors.Is works against either name.
var (
	ErrUnsupportedPlatform = graph.ErrUnsupportedPlatform
	ErrPermissionDenied    = recorder.ErrPermissionDenied
	ErrAlreadyRecording    = recorder.ErrAlreadyRecording
	ErrAudioLoadFailed     = cache.ErrAudioLoadFailed
	ErrCancelled           = cache.ErrCancelled
	ErrUnknownFormat       = cache.ErrUnknownFormat
	ErrInvalidMixInput     = mixer.ErrInvalidMixInput
	ErrUnknownSession      = playback.ErrUnknownSession
)

var (
	ErrUploadFailed = errors.New("upload failed")
	ErrClosed       = errors.New("engine is shut down")
	ErrNoTarget     = errors.New("play target has neither buffer nor source id")
)
