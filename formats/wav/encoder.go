// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/utils"
)

// HeaderSize is the size of the canonical PCM header written by this package.
const HeaderSize = 44

// MIMEType is the media type of the canonical container.
const MIMEType = "audio/wav"

const bitsPerSample = 16

// Header builds the canonical 44-byte RIFF/WAVE header for 16-bit PCM:
// format tag, channel count, sample rate, byte rate, block align, bit depth
// and data length.
func Header(sampleRate, channels int, dataSize uint32) []byte {
	byteRate := uint32(sampleRate) * uint32(channels) * bitsPerSample / 8
	blockAlign := uint16(channels) * bitsPerSample / 8

	header := make([]byte, HeaderSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	return header
}

// Encode writes b as interleaved 16-bit PCM WAV. Samples are clamped to
// [-1, 1] on the way out.
func Encode(w io.Writer, b *audio.Buffer) error {
	channels := b.NumChannels()
	if channels < 1 {
		return ErrInvalidChannelCount
	}

	frames := b.Frames()
	if _, err := w.Write(Header(b.Rate, channels, uint32(frames*channels*2))); err != nil {
		return fmt.Errorf("%w", err)
	}

	// Write in blocks of frames to bound the scratch allocation.
	const chunkFrames = 4096
	scratch := make([]float32, min(frames, chunkFrames)*channels)
	out := make([]byte, len(scratch)*2)

	for start := 0; start < frames; start += chunkFrames {
		end := min(start+chunkFrames, frames)
		n := (end - start) * channels

		for f := start; f < end; f++ {
			base := (f - start) * channels
			for c := range channels {
				scratch[base+c] = b.Data[c][f]
			}
		}

		written := utils.PutPCM16(out, scratch[:n])
		if _, err := w.Write(out[:written]); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	return nil
}

// EncodeBytes is Encode into a fresh byte slice.
func EncodeBytes(b *audio.Buffer) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + b.Frames()*b.NumChannels()*2)

	if err := Encode(&buf, b); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WritePCM16 writes already interleaved little-endian 16-bit PCM behind a
// canonical header. It is how recorded chunks become one container.
func WritePCM16(w io.Writer, sampleRate, channels int, pcm ...[]byte) error {
	if channels < 1 {
		return ErrInvalidChannelCount
	}

	var size int
	for _, p := range pcm {
		size += len(p)
	}

	if _, err := w.Write(Header(sampleRate, channels, uint32(size))); err != nil {
		return fmt.Errorf("%w", err)
	}

	for _, p := range pcm {
		if _, err := w.Write(p); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	return nil
}
