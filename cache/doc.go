// SPDX-License-Identifier: EPL-2.0

// Package cache fetches, decodes and keeps audio sources in memory.
//
// Sources are fetched progressively in byte ranges through a Fetcher,
// decoded by content sniffing against an audio.Registry and resampled to
// the engine rate. Concurrent loads of one source share a single fetch.
// Entries are evicted least-recently-used first once the decoded size
// passes the ceiling; entries held by a Lease are never evicted.
//
// A Governor polls heap usage and trims the cache under pressure.
package cache
