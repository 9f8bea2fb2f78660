// SPDX-License-Identifier: EPL-2.0

// Package wav decodes RIFF/WAVE integer PCM and writes the canonical
// 16-bit interleaved container the engine uses for recordings and mixdowns.
//
// Decoding is delegated to github.com/go-audio/wav. 8, 16, 24 and 32 bit
// integer PCM is accepted; samples come out as float32 in [-1, 1].
//
// Encode and WritePCM16 produce a 44-byte header followed by little-endian
// 16-bit samples:
//
//	data, err := wav.EncodeBytes(buf)
//	if err != nil {
//	    return err
//	}
package wav
