// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF integer PCM through github.com/go-audio/aiff.
package aiff
