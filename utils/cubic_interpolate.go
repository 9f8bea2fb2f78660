// SPDX-License-Identifier: EPL-2.0

package utils

// CubicInterpolate performs Catmull-Rom interpolation.
// x is the fractional position between y1 and y2 (0 <= x <= 1)
// y0, y1, y2, y3 are four consecutive samples
func CubicInterpolate(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*x*x*x + a1*x*x + a2*x + a3
}

// CubicAt reads a planar channel at a fractional frame position using
// CubicInterpolate. Neighbours outside the slice are extrapolated linearly
// from the two edge samples, so positions in [0, len(ch)-1] are always safe.
func CubicAt(ch []float32, pos float64) float32 {
	n := len(ch)
	if n == 0 {
		return 0
	}

	i := int(pos)
	if i >= n-1 {
		return ch[n-1]
	}
	if i < 0 {
		return ch[0]
	}

	frac := float32(pos - float64(i))
	if frac == 0 {
		return ch[i]
	}

	y1 := ch[i]
	y2 := ch[i+1]

	y0 := 2*y1 - y2
	if i > 0 {
		y0 = ch[i-1]
	}
	y3 := 2*y2 - y1
	if i+2 < n {
		y3 = ch[i+2]
	}

	return CubicInterpolate(y0, y1, y2, y3, frac)
}
