// SPDX-License-Identifier: EPL-2.0

package opus

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ik5/vocalengine/audio"
	hopus "gopkg.in/hraban/opus.v2"
)

// SampleRate is the fixed decode rate of libopusfile.
const SampleRate = 48000

var opusHead = []byte("OpusHead")

// floatReader is the subset of hopus.Stream used by source.
type floatReader interface {
	ReadFloat32(pcm []float32) (int, error)
	Close() error
}

type source struct {
	dec      floatReader
	channels int
}

func (s *source) SampleRate() int { return SampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) BufSize() int    { return 5760 * s.channels }
func (s *source) Close() error    { return s.dec.Close() }

func (s *source) ReadSamples(dst []float32) (int, error) {
	want := len(dst) / s.channels * s.channels
	if want == 0 {
		return 0, audio.ErrInvalidDstSize
	}

	// ReadFloat32 reports samples per channel.
	n, err := s.dec.ReadFloat32(dst[:want])
	if err != nil {
		if err == io.EOF {
			return n * s.channels, io.EOF
		}
		return n * s.channels, fmt.Errorf("%w", err)
	}

	return n * s.channels, nil
}

// Decoder decodes Ogg Opus at 48 kHz.
type Decoder struct{}

// Sniff matches an Ogg page carrying an OpusHead packet.
func (Decoder) Sniff(header []byte) bool {
	return len(header) >= 4 &&
		bytes.Equal(header[:4], []byte("OggS")) &&
		bytes.Contains(header, opusHead)
}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading opus data: %w", err)
	}

	channels, err := headChannels(data)
	if err != nil {
		return nil, err
	}

	stream, err := hopus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotOpusFile, err)
	}

	return &source{dec: stream, channels: channels}, nil
}

// headChannels reads the output channel count from the identification
// header: "OpusHead", version, channel count.
func headChannels(data []byte) (int, error) {
	i := bytes.Index(data, opusHead)
	if i < 0 || i+len(opusHead)+2 > len(data) {
		return 0, ErrNotOpusFile
	}

	channels := int(data[i+len(opusHead)+1])
	if channels < 1 || channels > 2 {
		// libopusfile downmixes nothing beyond stereo for ReadFloat32.
		return 0, ErrInvalidChannelCount
	}

	return channels, nil
}
