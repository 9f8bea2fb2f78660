// SPDX-License-Identifier: EPL-2.0

package mixer

import "errors"

var ErrInvalidMixInput = errors.New("invalid mix input")
