// SPDX-License-Identifier: EPL-2.0

package vocalengine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/utils"
)

// open detects the container of data and returns a decoding source.
func open(registry *audio.Registry, data []byte) (audio.Source, string, error) {
	format, dec, ok := registry.Detect(data)
	if !ok {
		return nil, "", ErrUnknownFormat
	}

	src, err := dec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("decoding %s: %w", format, err)
	}

	return src, format, nil
}

// Decode detects the container of data with registry and decodes it. When
// rate is positive the result is resampled to it. The detected format key is
// returned alongside the buffer.
func Decode(ctx context.Context, registry *audio.Registry, data []byte, rate int) (*audio.Buffer, string, error) {
	src, format, err := open(registry, data)
	if err != nil {
		return nil, format, err
	}
	defer src.Close()

	buf, err := audio.ReadAll(ctx, src)
	if err != nil {
		return nil, format, fmt.Errorf("decoding %s: %w", format, err)
	}

	if rate > 0 {
		buf, err = audio.NewResampler(rate).Resample(ctx, buf)
		if err != nil {
			return nil, format, fmt.Errorf("resampling: %w", err)
		}
	}

	return buf, format, nil
}

// ResampleToMono16 drains src as mono 16-bit PCM at targetRate, which is
// what most pitch analysers consume. Channels are averaged while reading so
// only one channel is ever buffered. src is not closed.
func ResampleToMono16(ctx context.Context, src audio.Source, targetRate int) ([]int16, error) {
	mono, err := audio.ReadAll(ctx, audio.NewMonoMixer(src))
	if err != nil {
		return nil, err
	}

	resampled, err := audio.NewResampler(targetRate).Resample(ctx, mono)
	if err != nil {
		return nil, err
	}

	pcm16 := make([]int16, resampled.Frames())
	for i, s := range resampled.Data[0] {
		pcm16[i] = utils.Float32ToInt16(s)
	}

	return pcm16, nil
}
