// SPDX-License-Identifier: EPL-2.0

// Package malgodev connects the engine to the platform audio devices via
// miniaudio. Context.Output is a graph.OutputFactory and Context.Capture a
// recorder.Opener. Samples cross the device boundary as 16-bit PCM.
package malgodev
