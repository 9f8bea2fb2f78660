// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/events"
	"github.com/ik5/vocalengine/formats/wav"
	"github.com/ik5/vocalengine/internal/audiotest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFetcher serves byte payloads by id. A non-nil gate blocks every fetch
// at or past gateFrom until it is closed or the fetch context ends.
type memFetcher struct {
	mu       sync.Mutex
	data     map[string][]byte
	fail     map[string]error
	calls    atomic.Int64
	gate     chan struct{}
	gateFrom int64
}

func newMemFetcher() *memFetcher {
	return &memFetcher{data: make(map[string][]byte), fail: make(map[string]error)}
}

func (m *memFetcher) Fetch(ctx context.Context, id string, offset, length int64) (Range, error) {
	m.calls.Add(1)

	if m.gate != nil && offset >= m.gateFrom {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return Range{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail[id]; err != nil && offset > 0 {
		return Range{}, err
	}

	data, ok := m.data[id]
	if !ok {
		return Range{}, errors.New("not found")
	}

	total := int64(len(data))
	if offset >= total {
		return Range{Total: total}, nil
	}
	end := min(offset+length, total)

	return Range{Data: data[offset:end], Total: total}, nil
}

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func wavRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	return r
}

func sineWAV(seconds float64) []byte {
	return audiotest.WAV(audiotest.Sine(8000, 1, seconds, 440, 0.5))
}

func newTestCache(cfg Config, f Fetcher, sink events.Sink) *Cache {
	return New(cfg, f, wavRegistry(), 8000, sink, nullLogger())
}

func TestLoadMissThenHit(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = sineWAV(0.5)

	bus := events.NewBus()
	sub := bus.Subscribe(16, events.TopicLoad)

	c := newTestCache(Config{ChunkSize: 1024}, f, bus)

	var (
		mu       sync.Mutex
		progress []float64
	)
	b, err := c.Load(t.Context(), "a", func(p float64) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, "wav", b.Format)
	assert.Equal(t, 8000, b.SampleRate)
	assert.Equal(t, 1, b.Channels)
	assert.Equal(t, 500*time.Millisecond, b.Duration)

	mu.Lock()
	require.NotEmpty(t, progress)
	assert.InDelta(t, 1, progress[len(progress)-1], 1e-9)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	mu.Unlock()

	calls := f.calls.Load()
	assert.Greater(t, calls, int64(1), "fetched in ranges")

	again, err := c.Load(t.Context(), "a", nil)
	require.NoError(t, err)
	assert.Same(t, b.Buffer, again.Buffer)
	assert.Equal(t, calls, f.calls.Load())
	assert.Equal(t, 1, c.Fetches())

	var kinds []LoadKind
	for range 3 {
		kinds = append(kinds, (<-sub.C).(LoadEvent).Kind)
	}
	assert.Equal(t, []LoadKind{LoadStarted, LoadComplete, LoadHit}, kinds)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = sineWAV(0.2)
	f.gate = make(chan struct{})

	c := newTestCache(Config{}, f, nil)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*CachedBuffer, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Load(context.Background(), "a", nil)
		}()
	}

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		fl, ok := c.flights["a"]
		return ok && fl.waiters == callers
	}, time.Second, time.Millisecond)

	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, c.Fetches())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0].Buffer, results[i].Buffer)
	}
}

func TestCancelReachesEveryWaiter(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = sineWAV(0.2)
	f.gate = make(chan struct{})

	bus := events.NewBus()
	sub := bus.Subscribe(16, events.TopicLoad)
	c := newTestCache(Config{}, f, bus)

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := c.Load(context.Background(), "a", nil)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		fl, ok := c.flights["a"]
		return ok && fl.waiters == 2
	}, time.Second, time.Millisecond)

	assert.True(t, c.Cancel("a"))
	assert.False(t, c.Cancel("a"))

	for range 2 {
		err := <-errs
		assert.ErrorIs(t, err, ErrCancelled)
		assert.NotErrorIs(t, err, ErrAudioLoadFailed)
	}
	assert.Zero(t, c.Len())

	var cancelled bool
	for !cancelled {
		ev := (<-sub.C).(LoadEvent)
		cancelled = ev.Kind == LoadCancelled
	}

	close(f.gate)
	_, err := c.Load(t.Context(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Fetches())
}

func TestCancelFromProgressCallback(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = sineWAV(0.5)
	f.gate = make(chan struct{})
	f.gateFrom = 1
	defer close(f.gate)

	c := newTestCache(Config{ChunkSize: 1000}, f, nil)

	first := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), "a", nil)
		first <- err
	}()

	// The first chunk lands and reports progress; the second blocks.
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), "a", func(float64) { c.Cancel("a") })
		second <- err
	}()

	for _, errc := range []chan error{second, first} {
		select {
		case err := <-errc:
			assert.ErrorIs(t, err, ErrCancelled)
		case <-time.After(2 * time.Second):
			t.Fatal("load did not return after cancelling from its progress callback")
		}
	}

	// The cache is still usable.
	assert.False(t, c.Cancel("a"))
	assert.Zero(t, c.Len())
}

func TestWaiterContextDetaches(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = sineWAV(0.2)
	f.gate = make(chan struct{})

	c := newTestCache(Config{}, f, nil)

	ctx, cancel := context.WithCancel(t.Context())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Load(ctx, "a", nil)
		errc <- err
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-errc
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.flights) == 0
	}, time.Second, time.Millisecond)
	assert.Zero(t, c.Len())
}

func TestLoadFailureLeavesCacheUnchanged(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")

	f := newMemFetcher()
	f.data["ok"] = sineWAV(0.1)
	f.data["broken"] = sineWAV(0.5)
	f.fail["broken"] = boom
	f.data["text"] = []byte("this is not audio, it is a long enough text payload")

	c := newTestCache(Config{ChunkSize: 512}, f, nil)

	_, err := c.Load(t.Context(), "ok", nil)
	require.NoError(t, err)

	_, err = c.Load(t.Context(), "broken", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioLoadFailed)
	assert.ErrorIs(t, err, boom)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "broken", le.SourceID)
	assert.Equal(t, int64(512), le.BytesRead)

	_, err = c.Load(t.Context(), "text", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.ErrorIs(t, err, ErrAudioLoadFailed)

	assert.Equal(t, 1, c.Len())
}

func TestEvictionRespectsCeilingAndPins(t *testing.T) {
	t.Parallel()

	// each 0.5 s mono buffer at 8 kHz costs 16000 bytes
	f := newMemFetcher()
	for _, id := range []string{"a", "b", "c", "d"} {
		f.data[id] = sineWAV(0.5)
	}

	bus := events.NewBus()
	sub := bus.Subscribe(64, events.TopicCleanup)
	c := newTestCache(Config{MaxBytes: 40000}, f, bus)

	lease, err := c.Acquire(t.Context(), "a", nil)
	require.NoError(t, err)
	assert.True(t, c.Pinned("a"))

	for _, id := range []string{"b", "c", "d"} {
		_, err := c.Load(t.Context(), id, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Bytes(), int64(40000))
	}

	_, ok := c.Get("a")
	assert.True(t, ok, "pinned entry survives")
	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used goes first")
	_, ok = c.Get("d")
	assert.True(t, ok)

	lease.Release()
	lease.Release()
	assert.False(t, c.Pinned("a"))

	n, freed := c.Clear()
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(32000), freed)
	assert.Zero(t, c.Bytes())

	ev := (<-sub.C).(ResourceCleanup)
	assert.Equal(t, "ceiling", ev.Reason)
}

func TestAcquireEnforcesCeiling(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = sineWAV(0.5)
	f.data["b"] = sineWAV(0.5)

	c := newTestCache(Config{MaxBytes: 40000}, f, nil)
	for _, id := range []string{"a", "b"} {
		_, err := c.Load(t.Context(), id, nil)
		require.NoError(t, err)
	}
	require.Equal(t, int64(32000), c.Bytes())

	// Shrink the ceiling under the cache; pinning must bring it back in.
	c.mu.Lock()
	c.cfg.MaxBytes = 20000
	c.mu.Unlock()

	lease, err := c.Acquire(t.Context(), "b", nil)
	require.NoError(t, err)
	defer lease.Release()

	assert.LessOrEqual(t, c.Bytes(), int64(20000))
	assert.True(t, c.Pinned("b"))
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestAcquireOversizedBuffer(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["big"] = sineWAV(1)

	c := newTestCache(Config{MaxBytes: 1000}, f, nil)

	lease, err := c.Acquire(t.Context(), "big", nil)
	require.NoError(t, err)
	assert.True(t, c.Pinned("big"))
	assert.Equal(t, int64(32000), c.Bytes())

	lease.Release()
	assert.Zero(t, c.Len())
}

func TestLoadResamplesToEngineRate(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = audiotest.WAV(audiotest.Sine(16000, 2, 0.25, 440, 0.5))

	c := newTestCache(Config{}, f, nil)

	b, err := c.Load(t.Context(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 8000, b.SampleRate)
	assert.Equal(t, 2, b.Channels)
	assert.InDelta(t, 2000, b.Buffer.Frames(), 1)
}

func TestGovernor(t *testing.T) {
	t.Parallel()

	f := newMemFetcher()
	f.data["a"] = sineWAV(0.5)
	f.data["b"] = sineWAV(0.5)

	bus := events.NewBus()
	sub := bus.Subscribe(16, events.TopicMemory)
	c := newTestCache(Config{MaxBytes: 40000, HeapThreshold: 100, PressureTarget: 0.5}, f, bus)

	for _, id := range []string{"a", "b"} {
		_, err := c.Load(t.Context(), id, nil)
		require.NoError(t, err)
	}

	var heap atomic.Uint64
	g := NewGovernor(c, heap.Load, bus, nullLogger())

	heap.Store(50)
	assert.False(t, g.Check())
	assert.Equal(t, 2, c.Len())

	heap.Store(500)
	assert.True(t, g.Check())
	assert.LessOrEqual(t, c.Bytes(), int64(20000))

	w := (<-sub.C).(MemoryWarning)
	assert.Equal(t, uint64(500), w.HeapBytes)

	hooked := 0
	g.OnPressure = func() { hooked++ }
	assert.True(t, g.Check())
	assert.Equal(t, 1, hooked)
}

func TestCloseRejectsLoads(t *testing.T) {
	t.Parallel()

	c := newTestCache(Config{}, newMemFetcher(), nil)
	c.Close()
	c.Close()

	_, err := c.Load(t.Context(), "a", nil)
	assert.ErrorIs(t, err, ErrClosed)
}
