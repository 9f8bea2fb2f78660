// SPDX-License-Identifier: EPL-2.0

// Package opus decodes Ogg Opus through gopkg.in/hraban/opus.v2, which needs
// libopus and libopusfile at build time. Output is always 48 kHz.
package opus
