// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/utils"
)

// go-mp3 always produces interleaved stereo 16-bit PCM.
const channels = 2

// mp3Reader is the subset of gomp3.Decoder used by source.
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

type source struct {
	dec        mp3Reader
	sampleRate int
	buf        []byte
	pending    []byte // odd trailing byte from the previous read
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return cap(s.buf) / 2 }

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	bytesNeeded := len(dst) * 2
	if cap(s.buf) < bytesNeeded {
		s.buf = make([]byte, bytesNeeded)
	}
	s.buf = s.buf[:bytesNeeded]

	carried := copy(s.buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.dec.Read(s.buf[carried:])
	n += carried

	if n%2 == 1 {
		s.pending = append(s.pending, s.buf[n-1])
		n--
	}

	if n == 0 {
		if err != nil {
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("%w", err)
		}
		return 0, nil
	}

	samples := utils.PCM16ToFloat32(dst, s.buf[:n])

	if err != nil && err != io.EOF {
		return samples, fmt.Errorf("%w", err)
	}

	return samples, err
}

// Decoder decodes MPEG-1/2 Layer III.
type Decoder struct{}

// Sniff matches an ID3v2 tag or a Layer III frame sync.
func (Decoder) Sniff(header []byte) bool {
	if len(header) >= 3 && bytes.Equal(header[:3], []byte("ID3")) {
		return true
	}

	return len(header) >= 2 &&
		header[0] == 0xFF &&
		header[1]&0xE0 == 0xE0 &&
		header[1]&0x06 == 0x02
}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		buf:        make([]byte, 8192),
	}, nil
}
