// SPDX-License-Identifier: EPL-2.0

// Package recorder drives microphone capture through a small state machine:
//
//	idle -> recording <-> paused -> idle (with a Result)
//
// Captured samples are encoded in chunks on a fixed interval, and a peak
// sampler polls a graph.Analyser fed from the same samples. Stop always
// stops and closes the capture stream, whatever else fails.
package recorder
