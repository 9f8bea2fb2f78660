// SPDX-License-Identifier: EPL-2.0

// Package formats assembles an audio.Registry with every decoder the engine
// ships. Detection order is fixed: containers with unambiguous magic first,
// raw MP3 frame sync last.
package formats

import (
	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/formats/aiff"
	"github.com/ik5/vocalengine/formats/mp3"
	"github.com/ik5/vocalengine/formats/opus"
	"github.com/ik5/vocalengine/formats/vorbis"
	"github.com/ik5/vocalengine/formats/wav"
)

const (
	WAV    = "wav"
	AIFF   = "aiff"
	Vorbis = "vorbis"
	Opus   = "opus"
	MP3    = "mp3"
)

// NewRegistry returns a registry with all built-in decoders.
func NewRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register(WAV, wav.Decoder{})
	r.Register(AIFF, aiff.Decoder{})
	r.Register(Vorbis, vorbis.Decoder{})
	r.Register(Opus, opus.Decoder{})
	r.Register(MP3, mp3.Decoder{})

	return r
}
