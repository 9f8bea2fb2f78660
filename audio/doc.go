// SPDX-License-Identifier: EPL-2.0

// Package audio provides the decoded-audio model shared by the engine.
//
// It contains:
//   - Source, the streaming interface every format decoder returns
//   - Registry, decoder lookup by name or by sniffing payload bytes
//   - Buffer, planar float32 audio held in memory
//   - Resampler and MonoMixer for rate and channel conversion
//
// # Sources and Buffers
//
// Decoders produce a Source. ReadAll drains it into a Buffer:
//
//	src, _ := wav.Decoder{}.Decode(r)
//	buf, err := audio.ReadAll(ctx, src)
//
// Buffers are what the cache stores, the graph plays and the mixer renders.
// A Buffer can be streamed again through NewBufferSource.
//
// # Format Detection
//
// Remote sources seldom carry a reliable extension, so decoders that
// implement Sniffer are matched against the first SniffLen bytes:
//
//	reg := audio.NewRegistry()
//	reg.Register("wav", wav.Decoder{})
//	name, dec, ok := reg.Detect(payload[:audio.SniffLen])
//
// # Sample Format
//
// Samples are float32 in [-1.0, 1.0]. Intermediate processing may exceed that
// range; conversion back to PCM clamps.
package audio
