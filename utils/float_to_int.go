// SPDX-License-Identifier: EPL-2.0

package utils

import "encoding/binary"

// Float32ToInt16 clamps x to [-1, 1] and scales it to the int16 range.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	// 32767 for positive max to avoid overflow
	return int16(x * 32767.0)
}

// Int16ToFloat32 is the inverse of Float32ToInt16 for decoded PCM.
func Int16ToFloat32(v int16) float32 {
	return float32(v) / 32768.0
}

// PutPCM16 writes src as little-endian 16-bit PCM into dst.
// dst must hold at least 2*len(src) bytes; the number of bytes written is returned.
func PutPCM16(dst []byte, src []float32) int {
	for i, s := range src {
		binary.LittleEndian.PutUint16(dst[i*2:i*2+2], uint16(Float32ToInt16(s)))
	}

	return len(src) * 2
}

// PCM16ToFloat32 decodes little-endian 16-bit PCM from src into dst and returns
// the number of samples written. A trailing odd byte is ignored.
func PCM16ToFloat32(dst []float32, src []byte) int {
	n := min(len(src)/2, len(dst))
	for i := range n {
		dst[i] = Int16ToFloat32(int16(binary.LittleEndian.Uint16(src[i*2 : i*2+2])))
	}

	return n
}
