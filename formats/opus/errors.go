// SPDX-License-Identifier: EPL-2.0

package opus

import "errors"

var (
	ErrNotOpusFile         = errors.New("not an Ogg Opus stream")
	ErrInvalidChannelCount = errors.New("invalid Opus channel count")
)
