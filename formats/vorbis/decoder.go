// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ik5/vocalengine/audio"
	"github.com/jfreymuth/oggvorbis"
)

// oggReader is the subset of oggvorbis.Reader used by source.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

type source struct {
	dec        oggReader
	sampleRate int
	channels   int
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return 4096 }

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	// Read fills interleaved values and reports values, not frames.
	want := len(dst) / s.channels * s.channels
	if want == 0 {
		return 0, audio.ErrInvalidDstSize
	}

	n, err := s.dec.Read(dst[:want])
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w", err)
	}
	if n == 0 && err == nil {
		return 0, nil
	}

	return n, err
}

// Decoder decodes Ogg Vorbis.
type Decoder struct{}

// Sniff matches an Ogg page carrying a Vorbis identification header.
func (Decoder) Sniff(header []byte) bool {
	return len(header) >= 4 &&
		bytes.Equal(header[:4], []byte("OggS")) &&
		bytes.Contains(header, []byte("\x01vorbis"))
}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		channels:   dec.Channels(),
	}, nil
}
