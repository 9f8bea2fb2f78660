// SPDX-License-Identifier: EPL-2.0

package cache

import "time"

type Config struct {
	// MaxBytes is the ceiling on the estimated size of decoded buffers.
	MaxBytes int64
	// ChunkSize is the byte range requested per fetch.
	ChunkSize int64
	// HeapThreshold is the heap size above which the governor signals
	// memory pressure.
	HeapThreshold uint64
	// PressureTarget is the fraction of MaxBytes the cache is trimmed to
	// under memory pressure.
	PressureTarget     float64
	MemoryPollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxBytes:           256 << 20,
		ChunkSize:          256 << 10,
		HeapThreshold:      512 << 20,
		PressureTarget:     0.5,
		MemoryPollInterval: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxBytes <= 0 {
		c.MaxBytes = d.MaxBytes
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.HeapThreshold == 0 {
		c.HeapThreshold = d.HeapThreshold
	}
	if c.PressureTarget <= 0 || c.PressureTarget > 1 {
		c.PressureTarget = d.PressureTarget
	}
	if c.MemoryPollInterval <= 0 {
		c.MemoryPollInterval = d.MemoryPollInterval
	}

	return c
}
