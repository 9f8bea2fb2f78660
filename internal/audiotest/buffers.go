// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"math"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/formats/wav"
)

// Sine returns a buffer holding the same sine wave on every channel.
func Sine(rate, channels int, seconds, freq float64, amp float32) *audio.Buffer {
	frames := int(seconds * float64(rate))
	b := audio.NewBuffer(channels, frames, rate)
	for i := range frames {
		v := amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		for c := range channels {
			b.Data[c][i] = v
		}
	}

	return b
}

// Constant returns a buffer filled with v.
func Constant(rate, channels int, seconds float64, v float32) *audio.Buffer {
	frames := int(seconds * float64(rate))
	b := audio.NewBuffer(channels, frames, rate)
	for _, ch := range b.Data {
		for i := range ch {
			ch[i] = v
		}
	}

	return b
}

// WAV encodes b in the canonical container. It panics on failure, which only
// happens for channel-less buffers.
func WAV(b *audio.Buffer) []byte {
	data, err := wav.EncodeBytes(b)
	if err != nil {
		panic(err)
	}

	return data
}
