// SPDX-License-Identifier: EPL-2.0

// Package audiotest holds fixtures shared by package tests: synthetic
// sources and buffers, a manually pumped output device and a fake capture
// stream. The device and stream satisfy graph.Device and recorder.Stream
// structurally so this package never imports the engine packages.
package audiotest
