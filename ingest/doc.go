// SPDX-License-Identifier: EPL-2.0

// Package ingest accepts performance metrics from a pitch analyser over a
// WebSocket. Each JSON text frame is one sample; the reply carries the
// adjustments the sample produced.
package ingest
