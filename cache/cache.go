// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"bytes"
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ik5/vocalengine/audio"
	"github.com/ik5/vocalengine/events"
	"github.com/sirupsen/logrus"
)

// CachedBuffer is a decoded source. The Buffer is shared and read-only.
type CachedBuffer struct {
	SourceID   string
	Format     string
	Buffer     *audio.Buffer
	SampleRate int
	Channels   int
	Duration   time.Duration
	LastAccess time.Time
}

// Progress receives the fetched fraction in [0, 1].
type Progress func(fraction float64)

type entry struct {
	buf  CachedBuffer
	size int64
	pins int
	elem *list.Element
}

// Cache decodes sources once and keeps them in memory under a byte ceiling,
// evicting the least recently used unpinned entries first.
type Cache struct {
	cfg        Config
	fetcher    Fetcher
	registry   *audio.Registry
	resampler  *audio.Resampler
	sampleRate int
	sink       events.Sink
	log        logrus.FieldLogger
	now        func() time.Time

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front is most recent
	total   int64
	flights map[string]*flight
	fetches int
	closed  bool
}

// New returns a cache decoding with registry and resampling to sampleRate.
func New(cfg Config, fetcher Fetcher, registry *audio.Registry, sampleRate int, sink events.Sink, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}

	base, cancel := context.WithCancel(context.Background())

	return &Cache{
		cfg:        cfg.withDefaults(),
		fetcher:    fetcher,
		registry:   registry,
		resampler:  audio.NewResampler(sampleRate),
		sampleRate: sampleRate,
		sink:       events.OrDiscard(sink),
		log:        log,
		now:        time.Now,
		base:       base,
		cancel:     cancel,
		entries:    make(map[string]*entry),
		lru:        list.New(),
		flights:    make(map[string]*flight),
	}
}

func (c *Cache) Config() Config { return c.cfg }

// Load returns the decoded buffer for id, fetching it on a miss. Callers
// loading an id that is already in flight share that fetch. onProgress may
// be nil.
func (c *Cache) Load(ctx context.Context, id string, onProgress Progress) (*CachedBuffer, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	if e, ok := c.entries[id]; ok {
		out := c.touchLocked(e)
		c.mu.Unlock()

		c.sink.Publish(LoadEvent{SourceID: id, Kind: LoadHit})
		if onProgress != nil {
			onProgress(1)
		}
		return out, nil
	}

	f, ok := c.flights[id]
	if !ok {
		f = c.startLocked(id)
	}
	f.waiters++
	listener, last := f.listen(onProgress)
	c.mu.Unlock()

	// Replayed outside c.mu: the callback may call back into the cache.
	if last > 0 {
		onProgress(last)
	}

	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		b := f.result
		return &b, nil

	case <-ctx.Done():
		c.mu.Lock()
		f.unlisten(listener)
		f.waiters--
		if f.waiters == 0 {
			f.cancel()
			c.forgetLocked(id, f)
		}
		c.mu.Unlock()

		c.log.WithFields(logrus.Fields{
			"function":  "Load",
			"source_id": id,
		}).Debug("Waiter detached from load")

		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// Acquire is Load plus a pin: the buffer is not evicted until the lease is
// released.
func (c *Cache) Acquire(ctx context.Context, id string, onProgress Progress) (*Lease, error) {
	b, err := c.Load(ctx, id, onProgress)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		// Evicted between decode and pin, typically because it alone is
		// larger than the ceiling. Reinsert it pinned.
		e = c.insertLocked(*b)
	}
	e.pins++
	n, freed := c.evictLocked(c.cfg.MaxBytes)
	c.mu.Unlock()

	c.reportEviction("ceiling", n, freed)

	return &Lease{cache: c, id: id, buf: *b}, nil
}

// Cancel aborts the in-flight fetch for id. Every waiter receives
// ErrCancelled. It reports whether a fetch was in flight.
func (c *Cache) Cancel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[id]
	if !ok {
		return false
	}
	f.cancel()
	c.forgetLocked(id, f)

	return true
}

// forgetLocked unlinks f so later loads of id start a fresh fetch instead of
// joining one that is being torn down.
func (c *Cache) forgetLocked(id string, f *flight) {
	if c.flights[id] == f {
		delete(c.flights, id)
	}
}

// Get returns a cached buffer without fetching.
func (c *Cache) Get(id string) (*CachedBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}

	return c.touchLocked(e), true
}

// Len is the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Bytes is the estimated size of all cached buffers.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.total
}

// Pinned reports whether id is cached and held by a lease.
func (c *Cache) Pinned(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	return ok && e.pins > 0
}

// Fetches counts fetches started since creation.
func (c *Cache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fetches
}

// Trim evicts unpinned entries until the cache holds at most limit bytes.
func (c *Cache) Trim(limit int64, reason string) (int, int64) {
	c.mu.Lock()
	n, freed := c.evictLocked(limit)
	c.mu.Unlock()

	c.reportEviction(reason, n, freed)

	return n, freed
}

// TrimForPressure trims to PressureTarget of the ceiling.
func (c *Cache) TrimForPressure() (int, int64) {
	return c.Trim(int64(float64(c.cfg.MaxBytes)*c.cfg.PressureTarget), "memory pressure")
}

// Clear drops every unpinned entry.
func (c *Cache) Clear() (int, int64) {
	return c.Trim(0, "clear")
}

// Close cancels in-flight fetches and drops unpinned entries.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.Clear()
}

func (c *Cache) touchLocked(e *entry) *CachedBuffer {
	e.buf.LastAccess = c.now()
	c.lru.MoveToFront(e.elem)

	out := e.buf
	return &out
}

func (c *Cache) insertLocked(b CachedBuffer) *entry {
	if old, ok := c.entries[b.SourceID]; ok {
		return old
	}

	e := &entry{buf: b, size: b.Buffer.ByteSize()}
	e.elem = c.lru.PushFront(e)
	c.entries[b.SourceID] = e
	c.total += e.size

	return e
}

// evictLocked drops least recently used unpinned entries until total <=
// limit or only pinned entries remain.
func (c *Cache) evictLocked(limit int64) (int, int64) {
	var (
		n     int
		freed int64
	)

	for el := c.lru.Back(); el != nil && c.total > limit; {
		prev := el.Prev()

		e := el.Value.(*entry)
		if e.pins == 0 {
			c.lru.Remove(el)
			delete(c.entries, e.buf.SourceID)
			c.total -= e.size
			freed += e.size
			n++
		}

		el = prev
	}

	return n, freed
}

func (c *Cache) reportEviction(reason string, n int, freed int64) {
	if n == 0 {
		return
	}

	c.log.WithFields(logrus.Fields{
		"function": "evict",
		"reason":   reason,
		"entries":  n,
		"bytes":    freed,
	}).Info("Evicted cached buffers")

	c.sink.Publish(ResourceCleanup{Reason: reason, Entries: n, Bytes: freed})
}

func (c *Cache) release(id string) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok && e.pins > 0 {
		e.pins--
	}
	n, freed := c.evictLocked(c.cfg.MaxBytes)
	c.mu.Unlock()

	c.reportEviction("lease released", n, freed)
}

func (c *Cache) startLocked(id string) *flight {
	ctx, cancel := context.WithCancel(c.base)
	f := newFlight(cancel)
	c.flights[id] = f
	c.fetches++

	c.sink.Publish(LoadEvent{SourceID: id, Kind: LoadStarted})

	go c.run(ctx, id, f)

	return f
}

// run performs one fetch and decode, then settles the flight. Events are
// published before waiters are released so subscribers see the outcome
// ahead of anything the waiters do next.
func (c *Cache) run(ctx context.Context, id string, f *flight) {
	defer f.cancel()

	log := c.log.WithFields(logrus.Fields{
		"function":  "run",
		"source_id": id,
	})

	b, read, err := c.fetchAndDecode(ctx, id, f)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.forgetLocked(id, f)

	switch {
	case err == nil:
		c.insertLocked(b)
		f.result = b

		log.WithFields(logrus.Fields{
			"bytes":    read,
			"format":   b.Format,
			"duration": b.Duration.String(),
		}).Info("Load complete")
		c.sink.Publish(LoadEvent{SourceID: id, Kind: LoadComplete, Bytes: read})

		n, freed := c.evictLocked(c.cfg.MaxBytes)
		c.reportEviction("ceiling", n, freed)

	case ctx.Err() != nil:
		f.err = fmt.Errorf("%w: %s", ErrCancelled, id)

		log.Info("Load cancelled")
		c.sink.Publish(LoadEvent{SourceID: id, Kind: LoadCancelled, Bytes: read, Err: f.err})

	default:
		f.err = &LoadError{SourceID: id, BytesRead: read, Err: err}

		log.WithField("error", err.Error()).Warn("Load failed")
		c.sink.Publish(LoadEvent{SourceID: id, Kind: LoadFailed, Bytes: read, Err: f.err})
	}

	close(f.done)
}

func (c *Cache) fetchAndDecode(ctx context.Context, id string, f *flight) (CachedBuffer, int64, error) {
	data, err := c.fetch(ctx, id, f)
	read := int64(len(data))
	if err != nil {
		return CachedBuffer{}, read, err
	}

	format, dec, ok := c.registry.Detect(data)
	if !ok {
		return CachedBuffer{}, read, ErrUnknownFormat
	}

	src, err := dec.Decode(bytes.NewReader(data))
	if err != nil {
		return CachedBuffer{}, read, fmt.Errorf("decoding %s: %w", format, err)
	}
	defer src.Close()

	buf, err := audio.ReadAll(ctx, src)
	if err != nil {
		return CachedBuffer{}, read, fmt.Errorf("decoding %s: %w", format, err)
	}

	buf, err = c.resampler.Resample(ctx, buf)
	if err != nil {
		return CachedBuffer{}, read, fmt.Errorf("resampling: %w", err)
	}

	if err := buf.Validate(); err != nil {
		return CachedBuffer{}, read, err
	}

	f.report(1)

	return CachedBuffer{
		SourceID:   id,
		Format:     format,
		Buffer:     buf,
		SampleRate: buf.Rate,
		Channels:   buf.NumChannels(),
		Duration:   buf.Duration(),
		LastAccess: c.now(),
	}, read, nil
}

// fetch pulls the whole payload in ChunkSize ranges.
func (c *Cache) fetch(ctx context.Context, id string, f *flight) ([]byte, error) {
	var data []byte
	total := int64(-1)

	for {
		if err := ctx.Err(); err != nil {
			return data, err
		}

		r, err := c.fetcher.Fetch(ctx, id, int64(len(data)), c.cfg.ChunkSize)
		if err != nil {
			return data, err
		}

		data = append(data, r.Data...)
		if r.Total >= 0 {
			total = r.Total
		}

		if total > 0 {
			// Decoding is the last step; keep the bar short of full until then.
			f.report(min(float64(len(data))/float64(total), 1) * 0.99)
		}

		if len(r.Data) == 0 ||
			(total >= 0 && int64(len(data)) >= total) ||
			int64(len(r.Data)) < c.cfg.ChunkSize {
			break
		}
	}

	return data, nil
}

// Lease pins a cached buffer.
type Lease struct {
	cache *Cache
	id    string
	buf   CachedBuffer
	once  sync.Once
}

func (l *Lease) Buffer() *CachedBuffer {
	b := l.buf
	return &b
}

func (l *Lease) SourceID() string { return l.id }

// Release unpins the buffer. Calling it more than once is harmless.
func (l *Lease) Release() {
	l.once.Do(func() { l.cache.release(l.id) })
}
