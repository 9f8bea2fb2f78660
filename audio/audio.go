// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"io"
	"sync"
)

type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved float32 samples in [-1,1].
	// Returns number of float32 values written (not frames). When n == 0 with err == io.EOF, the stream is finished.
	ReadSamples(dst []float32) (n int, err error)

	BufSize() int

	// Close releases any resources.
	Close() error
}

// Decoder constructs a Source from an input reader.
type Decoder interface {
	Decode(r io.Reader) (Source, error)
}

// Sniffer is implemented by decoders that can recognise their container from
// the first bytes of a payload. Fetched sources rarely carry a trustworthy
// extension, so the cache picks a decoder by content.
type Sniffer interface {
	Sniff(header []byte) bool
}

// SniffLen is the number of leading bytes handed to Sniffer implementations.
const SniffLen = 64

// Registry for decoders by format key (e.g., "wav", "mp3", "ogg vorbis").
type Registry struct {
	codecs map[string]Decoder
	order  []string

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Decoder),
		mtx:    &sync.Mutex{},
	}
}

func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.codecs[format]; !ok {
		r.order = append(r.order, format)
	}
	r.codecs[format] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	d, ok := r.codecs[format]
	return d, ok
}

// Formats lists registered format keys in registration order.
func (r *Registry) Formats() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Detect returns the first registered decoder whose Sniffer accepts header,
// in registration order.
func (r *Registry) Detect(header []byte) (string, Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if len(header) > SniffLen {
		header = header[:SniffLen]
	}

	for _, format := range r.order {
		d := r.codecs[format]
		if s, ok := d.(Sniffer); ok && s.Sniff(header) {
			return format, d, true
		}
	}

	return "", nil, false
}
