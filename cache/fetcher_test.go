// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentRangeTotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{in: "bytes 0-99/1234", want: 1234},
		{in: "bytes 0-99/*", want: -1},
		{in: "", want: -1},
		{in: "bytes 0-99/abc", want: -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, contentRangeTotal(tt.in), tt.in)
	}
}

func TestHTTPFetcherRanges(t *testing.T) {
	t.Parallel()

	payload := sineWAV(0.25)
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.ServeContent(w, r, "take.wav", time.Time{}, bytes.NewReader(payload))
	}))
	t.Cleanup(srv.Close)

	h := &HTTPFetcher{Client: srv.Client()}

	r, err := h.Fetch(t.Context(), srv.URL, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, payload[10:110], r.Data)
	assert.Equal(t, int64(len(payload)), r.Total)

	c := New(Config{ChunkSize: 1000}, h, wavRegistry(), 8000, nil, nullLogger())
	b, err := c.Load(t.Context(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, 2000, b.Buffer.Frames())
	assert.Equal(t, int64(1+(len(payload)+999)/1000), requests.Load())
}

func TestHTTPFetcherIgnoredRange(t *testing.T) {
	t.Parallel()

	payload := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	h := &HTTPFetcher{Client: srv.Client()}

	r, err := h.Fetch(t.Context(), srv.URL, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), r.Data)
	assert.Equal(t, int64(10), r.Total)
}

func TestHTTPFetcherStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	c := New(Config{}, &HTTPFetcher{Client: srv.Client()}, wavRegistry(), 8000, nil, nullLogger())

	_, err := c.Load(t.Context(), srv.URL+"/missing.wav", nil)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.ErrorIs(t, err, ErrAudioLoadFailed)
}

func TestFileFetcherAndRouter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("abcdef"), 0o600))

	f := FileFetcher{Root: dir}

	r, err := f.Fetch(t.Context(), "a.bin", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("cde"), r.Data)
	assert.Equal(t, int64(6), r.Total)

	r, err = f.Fetch(t.Context(), "file://"+filepath.Join(dir, "a.bin"), 6, 3)
	require.NoError(t, err)
	assert.Empty(t, r.Data)

	router := NewRouter(nil, dir)
	r, err = router.Fetch(t.Context(), "a.bin", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), r.Data)

	_, err = router.Fetch(t.Context(), "s3://bucket/key", 0, 10)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestFetcherFunc(t *testing.T) {
	t.Parallel()

	var got string
	f := FetcherFunc(func(_ context.Context, id string, _, _ int64) (Range, error) {
		got = id
		return Range{Total: 0}, nil
	})

	_, err := f.Fetch(t.Context(), "x", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}
