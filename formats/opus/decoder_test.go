// SPDX-License-Identifier: EPL-2.0

package opus

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStream struct {
	channels int
	values   []float32
	closed   bool
}

func (m *mockStream) ReadFloat32(pcm []float32) (int, error) {
	if len(m.values) == 0 {
		return 0, io.EOF
	}

	n := copy(pcm, m.values)
	m.values = m.values[n:]

	return n / m.channels, nil
}

func (m *mockStream) Close() error {
	m.closed = true
	return nil
}

func head(channels byte) []byte {
	page := append([]byte("OggS"), make([]byte, 24)...)
	return append(page, append(opusHead, 1, channels, 0x38, 0x01)...)
}

func TestSniff(t *testing.T) {
	t.Parallel()

	assert.True(t, Decoder{}.Sniff(head(2)))
	assert.False(t, Decoder{}.Sniff([]byte("OggS\x00\x02\x01vorbis")))
	assert.False(t, Decoder{}.Sniff([]byte("ID3")))
}

func TestHeadChannels(t *testing.T) {
	t.Parallel()

	ch, err := headChannels(head(1))
	require.NoError(t, err)
	assert.Equal(t, 1, ch)

	ch, err = headChannels(head(2))
	require.NoError(t, err)
	assert.Equal(t, 2, ch)

	_, err = headChannels(head(6))
	assert.ErrorIs(t, err, ErrInvalidChannelCount)

	_, err = headChannels([]byte("OggS"))
	assert.ErrorIs(t, err, ErrNotOpusFile)
}

func TestReadSamplesScalesByChannels(t *testing.T) {
	t.Parallel()

	stream := &mockStream{channels: 2, values: []float32{0.1, 0.2, 0.3, 0.4}}
	src := &source{dec: stream, channels: 2}

	dst := make([]float32, 8)
	n, err := src.ReadSamples(dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, SampleRate, src.SampleRate())

	n, err = src.ReadSamples(dst)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, src.Close())
	assert.True(t, stream.closed)
}

func TestDecodeRejectsMissingHead(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(bytes.NewReader([]byte("OggS but nothing else")))
	assert.ErrorIs(t, err, ErrNotOpusFile)
}
