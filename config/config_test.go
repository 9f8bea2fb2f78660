// SPDX-License-Identifier: EPL-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/vocalengine/adaptive"
	"github.com/ik5/vocalengine/graph"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.Equal(t, graph.DefaultConfig(), c.Graph)
	assert.Equal(t, adaptive.DefaultConfig(), c.Adaptive)
	assert.Equal(t, 100*time.Millisecond, c.ProgressInterval)
	assert.Equal(t, 100*time.Millisecond, c.Recorder.ChunkInterval)
	assert.Equal(t, 48000, c.Recorder.SampleRate)
	assert.Equal(t, 512, c.Mixer.BlockSize)
	assert.Equal(t, logrus.InfoLevel, c.LogLevel)
	require.NoError(t, c.Graph.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Parallel()

	vars := map[string]string{
		"VOCAL_SAMPLE_RATE":           "44100",
		"VOCAL_CHANNELS":              "1",
		"VOCAL_CACHE_MAX_BYTES":       "1048576",
		"VOCAL_MEMORY_POLL_INTERVAL":  "5s",
		"VOCAL_RECORD_CHUNK_INTERVAL": "250",
		"VOCAL_ADAPT_WINDOW":          "25",
		"VOCAL_ADAPT_TRACK_KEY_HZ":    "261.63",
		"VOCAL_LOG_LEVEL":             "debug",
		"VOCAL_BLOCK_SIZE":            "not a number",
	}

	c := FromEnv(func(k string) string { return vars[k] })

	assert.Equal(t, 44100, c.Graph.SampleRate)
	assert.Equal(t, 44100, c.Recorder.SampleRate)
	assert.Equal(t, 1, c.Graph.Channels)
	assert.Equal(t, 512, c.Graph.BlockSize)
	assert.Equal(t, int64(1<<20), c.Cache.MaxBytes)
	assert.Equal(t, 5*time.Second, c.Cache.MemoryPollInterval)
	assert.Equal(t, 250*time.Millisecond, c.Recorder.ChunkInterval)
	assert.Equal(t, 25, c.Adaptive.WindowSize)
	assert.InDelta(t, 261.63, c.Adaptive.TrackKeyHz, 1e-9)
	assert.Equal(t, logrus.DebugLevel, c.LogLevel)
	assert.Equal(t, logrus.DebugLevel, c.Logger().GetLevel())
}

func TestLoadEnvFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VOCAL_TEST_ONLY_UNUSED=1\nVOCAL_INGEST_ADDR=127.0.0.1:9999\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	if _, set := os.LookupEnv("VOCAL_INGEST_ADDR"); !set {
		assert.Equal(t, "127.0.0.1:9999", c.IngestAddr)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
