// SPDX-License-Identifier: EPL-2.0

// Package playback plays decoded buffers on a graph.Engine as independent
// sessions.
//
// Each session is one subgraph, BufferSource then effect Chain then Gain,
// connected to the engine's master bus. Sessions are addressed by a
// SessionID carrying a generation counter, so an id kept after its session
// ended is rejected with ErrUnknownSession instead of reaching a newer
// session that reused the slot.
//
// A session publishes Started, then Progress events on the audio clock,
// followed by exactly one terminal Ended or Stopped event. A session that
// cannot reach the graph ends with Failed instead.
package playback
