// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// DBToGain converts decibels to a linear amplitude factor.
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// GainToDB converts a linear amplitude factor to decibels.
// Non-positive input yields -Inf.
func GainToDB(g float64) float64 {
	if g <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(g)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
