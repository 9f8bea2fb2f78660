// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMP3Reader hands out 16-bit PCM in chunks of at most chunk bytes.
type mockMP3Reader struct {
	sampleRate int
	pcm        []byte
	chunk      int
	err        error
}

func newMockReader(rate, chunk int, samples ...int16) *mockMP3Reader {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	return &mockMP3Reader{sampleRate: rate, pcm: pcm, chunk: chunk}
}

func (m *mockMP3Reader) SampleRate() int { return m.sampleRate }

func (m *mockMP3Reader) Read(buf []byte) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if len(m.pcm) == 0 {
		return 0, io.EOF
	}

	n := min(len(buf), len(m.pcm), m.chunk)
	copy(buf, m.pcm[:n])
	m.pcm = m.pcm[n:]

	return n, nil
}

func TestSniff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header []byte
		want   bool
	}{
		{name: "id3", header: []byte("ID3\x04\x00"), want: true},
		{name: "mpeg1 layer3", header: []byte{0xFF, 0xFB, 0x90, 0x00}, want: true},
		{name: "mpeg2 layer3", header: []byte{0xFF, 0xF3, 0x90, 0x00}, want: true},
		{name: "adts aac", header: []byte{0xFF, 0xF1, 0x50, 0x80}, want: false},
		{name: "wav", header: []byte("RIFF\x00\x00\x00\x00WAVE"), want: false},
		{name: "empty", header: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Decoder{}.Sniff(tt.header))
		})
	}
}

func TestReadSamplesConvertsPCM(t *testing.T) {
	t.Parallel()

	src := &source{dec: newMockReader(44100, 1024, 16384, -16384, 0, 32767), sampleRate: 44100}

	dst := make([]float32, 4)
	n, err := src.ReadSamples(dst)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	assert.InDelta(t, 0.5, dst[0], 1e-4)
	assert.InDelta(t, -0.5, dst[1], 1e-4)
	assert.InDelta(t, 0.0, dst[2], 1e-4)
	assert.InDelta(t, 1.0, dst[3], 1e-3)

	n, err = src.ReadSamples(dst)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadSamplesCarriesOddByte(t *testing.T) {
	t.Parallel()

	// 3-byte reads split every other sample across calls.
	src := &source{dec: newMockReader(44100, 3, 1000, 2000, 3000, 4000), sampleRate: 44100}

	var got []float32
	dst := make([]float32, 2)
	for {
		n, err := src.ReadSamples(dst)
		got = append(got, dst[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Len(t, got, 4)
	assert.InDelta(t, 4000.0/32768.0, got[3], 1e-6)
}

func TestReadSamplesPropagatesError(t *testing.T) {
	t.Parallel()

	src := &source{dec: &mockMP3Reader{err: io.ErrUnexpectedEOF}, sampleRate: 44100}

	_, err := src.ReadSamples(make([]float32, 8))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(bytes.NewReader([]byte("not an mp3")))
	assert.Error(t, err)
}
