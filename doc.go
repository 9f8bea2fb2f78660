// SPDX-License-Identifier: EPL-2.0

// Package vocalengine is a client-side vocal audio engine. It records a
// singer, plays a backing track through a real-time audio graph, retunes that
// track while the take is running from pitch and tempo metrics pushed by an
// external analyser, mixes the take against the track offline and hands the
// result to a persistence collaborator.
//
// # Quick Start
//
//	cfg, _ := config.Load()
//	eng, err := vocalengine.New(cfg,
//		vocalengine.WithOutput(dev.Output),
//		vocalengine.WithCapture(dev.Capture),
//	)
//	if err != nil {
//		return err
//	}
//	defer eng.Shutdown()
//
//	id, _ := eng.Play(ctx, vocalengine.SourceTarget("https://example.com/track.mp3"), playback.Options{})
//	_ = eng.BindAdaptation(id)
//	_ = eng.StartRecording(ctx, recorder.Options{})
//	// ... feed eng.AdaptToPerformance from the pitch analyser ...
//	take, _ := eng.StopRecording()
//	mix, _ := eng.MixRecording(ctx, take, "https://example.com/track.mp3", mixer.DefaultConfig())
//	uri, _ := vocalengine.Upload(ctx, store, mix, vocalengine.Metadata{Title: "take 1"})
//
// # Components
//
// Each subpackage can be used on its own:
//   - graph: the audio graph (master gain, compressor, analyser, effect chains)
//   - cache: decoded buffer cache with progressive range fetches
//   - recorder: microphone capture with chunked encoding and peak metering
//   - playback: backing-track sessions with progress events
//   - mixer: offline mixdown of a vocal and an instrumental
//   - adaptive: the backing-track feedback controller
//   - ingest: a WebSocket endpoint for metrics samples
//   - device/malgo: miniaudio output and capture devices
//
// Decoders for WAV, AIFF, MP3, Ogg Vorbis and Ogg Opus live under formats.
package vocalengine
