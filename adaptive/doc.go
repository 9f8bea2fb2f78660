// SPDX-License-Identifier: EPL-2.0

// Package adaptive retunes a live backing track from performance metrics.
//
// The Controller keeps a rolling window of samples pushed by an external
// pitch analyser and derives tempo, key, volume and effects adjustments
// with independent bounded step rules. Each new state reaches the Target
// either as a short parameter ramp or, when key or effects move by a
// significant amount, as a rebuild of the effect chain. Never both.
//
// The controller has no timer; it only acts when a sample arrives.
package adaptive
