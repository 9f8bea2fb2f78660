// SPDX-License-Identifier: EPL-2.0

// Package mixer renders a vocal take against an instrumental offline.
//
// Mixing runs in a graph.OfflineContext, never on the live engine, so it
// cannot glitch playback. Identical inputs and Config give byte-identical
// output: the reverb impulse response comes from a fixed seed.
package mixer
