// SPDX-License-Identifier: EPL-2.0

package graph

// Clock describes the block being rendered.
type Clock struct {
	// Frame is the absolute frame index of the first frame in the block.
	Frame    int64
	Rate     int
	Channels int
}

// Time is the audio-clock time of the block start in seconds.
func (c Clock) Time() float64 {
	return float64(c.Frame) / float64(c.Rate)
}

// TimeAt is the audio-clock time frames into the block.
func (c Clock) TimeAt(frames int) float64 {
	return float64(c.Frame+int64(frames)) / float64(c.Rate)
}

// Node transforms an interleaved block in place.
type Node interface {
	Process(buf []float32, clock Clock)
}

// NodeFunc adapts a function to Node.
type NodeFunc func(buf []float32, clock Clock)

func (f NodeFunc) Process(buf []float32, clock Clock) { f(buf, clock) }

// Voice produces audio. dst arrives zeroed and sized to one block; the
// voice returns false once it has produced its last frame.
type Voice interface {
	Process(dst []float32, clock Clock) bool
}

// Context is what nodes need from whichever graph renders them, real-time
// or offline.
type Context interface {
	SampleRate() int
	Channels() int
	BlockSize() int
	// Now is the audio-clock time in seconds.
	Now() float64
}

// Subgraph is a voice followed by nodes applied in order.
type Subgraph struct {
	src   Voice
	nodes []Node
}

func NewSubgraph(src Voice, nodes ...Node) *Subgraph {
	return &Subgraph{src: src, nodes: nodes}
}

func (s *Subgraph) Process(dst []float32, clock Clock) bool {
	alive := s.src.Process(dst, clock)
	for _, n := range s.nodes {
		n.Process(dst, clock)
	}

	return alive
}
