// SPDX-License-Identifier: EPL-2.0

package recorder

import (
	"bytes"

	"github.com/ik5/vocalengine/formats/wav"
	"github.com/ik5/vocalengine/utils"
)

// Encoder turns captured samples into chunks and joins the chunks into the
// final blob.
type Encoder interface {
	MIMEType() string
	Encode(samples []float32) ([]byte, error)
	Finalize(chunks [][]byte, sampleRate, channels int) ([]byte, error)
}

// PCMEncoder produces a 16-bit WAV file.
type PCMEncoder struct{}

func (PCMEncoder) MIMEType() string { return wav.MIMEType }

func (PCMEncoder) Encode(samples []float32) ([]byte, error) {
	out := make([]byte, len(samples)*2)
	utils.PutPCM16(out, samples)

	return out, nil
}

func (PCMEncoder) Finalize(chunks [][]byte, sampleRate, channels int) ([]byte, error) {
	size := wav.HeaderSize
	for _, c := range chunks {
		size += len(c)
	}

	var buf bytes.Buffer
	buf.Grow(size)
	if err := wav.WritePCM16(&buf, sampleRate, channels, chunks...); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
