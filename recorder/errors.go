// SPDX-License-Identifier: EPL-2.0

package recorder

import "errors"

var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrInvalidState     = errors.New("invalid recorder state")
	// ErrPermissionDenied is returned when access to the capture device is refused.
	ErrPermissionDenied = errors.New("microphone access denied")
	ErrInvalidConfig    = errors.New("invalid recorder config")
)
