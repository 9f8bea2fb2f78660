// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MP3 through github.com/hajimehoshi/go-mp3.
//
// Output is always two interleaved channels; mono streams are duplicated by
// the decoder library.
package mp3
