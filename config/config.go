// SPDX-License-Identifier: EPL-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/adaptive"
	"github.com/ik5/vocalengine/cache"
	"github.com/ik5/vocalengine/graph"
	"github.com/ik5/vocalengine/mixer"
	"github.com/ik5/vocalengine/recorder"
)

// Config holds all runtime configuration.
type Config struct {
	Graph    graph.Config
	Cache    cache.Config
	Recorder recorder.Config
	Mixer    mixer.Options
	Adaptive adaptive.Config

	ProgressInterval time.Duration
	// FileRoot resolves relative source ids for the file fetcher.
	FileRoot string
	// IngestAddr is the listen address of the metrics WebSocket.
	IngestAddr string
	LogLevel   logrus.Level
}

// Default is the configuration with no environment at all.
func Default() Config {
	return FromEnv(func(string) string { return "" })
}

// Load reads files (".env" when none are given) and the process
// environment, which takes precedence. A missing default .env is not an
// error.
func Load(files ...string) (Config, error) {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}

	vars, err := godotenv.Read(files...)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading env file: %w", err)
		}
		vars = nil
	}

	return FromEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return vars[key]
	}), nil
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) Config {
	e := env(getenv)

	g := graph.DefaultConfig()
	g.SampleRate = e.int("VOCAL_SAMPLE_RATE", g.SampleRate)
	g.Channels = e.int("VOCAL_CHANNELS", g.Channels)
	g.BlockSize = e.int("VOCAL_BLOCK_SIZE", g.BlockSize)

	c := cache.DefaultConfig()
	c.MaxBytes = e.int64("VOCAL_CACHE_MAX_BYTES", c.MaxBytes)
	c.ChunkSize = e.int64("VOCAL_FETCH_CHUNK_SIZE", c.ChunkSize)
	c.HeapThreshold = uint64(e.int64("VOCAL_HEAP_THRESHOLD", int64(c.HeapThreshold)))
	c.PressureTarget = e.float("VOCAL_CACHE_PRESSURE_TARGET", c.PressureTarget)
	c.MemoryPollInterval = e.duration("VOCAL_MEMORY_POLL_INTERVAL", c.MemoryPollInterval)

	r := recorder.DefaultConfig()
	r.SampleRate = e.int("VOCAL_RECORD_SAMPLE_RATE", g.SampleRate)
	r.Channels = e.int("VOCAL_RECORD_CHANNELS", r.Channels)
	r.ChunkInterval = e.duration("VOCAL_RECORD_CHUNK_INTERVAL", r.ChunkInterval)
	r.PeakInterval = e.duration("VOCAL_RECORD_PEAK_INTERVAL", r.PeakInterval)
	r.PeakBufferSize = e.int("VOCAL_RECORD_PEAK_BUFFER", r.PeakBufferSize)

	m := mixer.DefaultOptions()
	m.SampleRate = e.int("VOCAL_MIX_SAMPLE_RATE", m.SampleRate)
	m.BlockSize = e.int("VOCAL_MIX_BLOCK_SIZE", g.BlockSize)

	a := adaptive.DefaultConfig()
	a.WindowSize = e.int("VOCAL_ADAPT_WINDOW", a.WindowSize)
	a.TempoLowThreshold = e.float("VOCAL_ADAPT_TEMPO_LOW", a.TempoLowThreshold)
	a.TempoHighThreshold = e.float("VOCAL_ADAPT_TEMPO_HIGH", a.TempoHighThreshold)
	a.AccuracyHighThreshold = e.float("VOCAL_ADAPT_ACCURACY_HIGH", a.AccuracyHighThreshold)
	a.TempoStepDown = e.float("VOCAL_ADAPT_TEMPO_STEP_DOWN", a.TempoStepDown)
	a.TempoStepUp = e.float("VOCAL_ADAPT_TEMPO_STEP_UP", a.TempoStepUp)
	a.MaxTempoDeviation = e.float("VOCAL_ADAPT_MAX_TEMPO_DEVIATION", a.MaxTempoDeviation)
	a.KeyConfidenceThreshold = e.float("VOCAL_ADAPT_KEY_CONFIDENCE", a.KeyConfidenceThreshold)
	a.KeyAccuracyThreshold = e.float("VOCAL_ADAPT_KEY_ACCURACY", a.KeyAccuracyThreshold)
	a.MaxKeyDeviation = e.float("VOCAL_ADAPT_MAX_KEY_DEVIATION", a.MaxKeyDeviation)
	a.TrackKeyHz = e.float("VOCAL_ADAPT_TRACK_KEY_HZ", a.TrackKeyHz)
	a.VolumeConfidenceLow = e.float("VOCAL_ADAPT_VOLUME_CONFIDENCE_LOW", a.VolumeConfidenceLow)
	a.VolumeFloor = e.float("VOCAL_ADAPT_VOLUME_FLOOR", a.VolumeFloor)
	a.SignificantKeyDelta = e.float("VOCAL_ADAPT_SIGNIFICANT_KEY", a.SignificantKeyDelta)
	a.SignificantEffectsDelta = e.float("VOCAL_ADAPT_SIGNIFICANT_EFFECTS", a.SignificantEffectsDelta)
	a.RampDuration = e.duration("VOCAL_ADAPT_RAMP", a.RampDuration)
	a.MaxReverbWet = e.float("VOCAL_ADAPT_MAX_REVERB_WET", a.MaxReverbWet)

	level := logrus.InfoLevel
	if l, err := logrus.ParseLevel(e.str("VOCAL_LOG_LEVEL", "info")); err == nil {
		level = l
	}

	return Config{
		Graph:            g,
		Cache:            c,
		Recorder:         r,
		Mixer:            m,
		Adaptive:         a,
		ProgressInterval: e.duration("VOCAL_PROGRESS_INTERVAL", 100*time.Millisecond),
		FileRoot:         e.str("VOCAL_FILE_ROOT", ""),
		IngestAddr:       e.str("VOCAL_INGEST_ADDR", ":8090"),
		LogLevel:         level,
	}
}

// Logger returns a logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(c.LogLevel)

	return log
}

type env func(string) string

func (e env) str(key, fallback string) string {
	if v := e(key); v != "" {
		return v
	}
	return fallback
}

func (e env) int(key string, fallback int) int {
	if v := e(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (e env) int64(key string, fallback int64) int64 {
	if v := e(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func (e env) float(key string, fallback float64) float64 {
	if v := e(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// duration accepts Go durations ("250ms") or plain milliseconds.
func (e env) duration(key string, fallback time.Duration) time.Duration {
	v := e(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return fallback
}
