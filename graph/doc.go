// SPDX-License-Identifier: EPL-2.0

// Package graph is the audio processing graph: a real-time Engine driving an
// output device, an OfflineContext for faster-than-real-time renders, and
// the nodes both share.
//
// Audio flows in fixed blocks of interleaved float32. Voices (BufferSource,
// Subgraph) produce a block, Nodes (Gain, Compressor, Analyser, Convolver,
// PitchShifter, Chain) transform it in place. The Engine sums every
// connected voice and runs the master chain:
//
//	voices -> master Gain -> Compressor -> Analyser -> device
//
// Parameters are changed with ramps (Param, ApplyRamp) rather than jumps.
// Connections and effect chains are disposable handles; Dispose is safe to
// call on every exit path.
package graph
