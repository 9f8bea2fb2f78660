// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Range is one fetched span of a source.
type Range struct {
	Data []byte
	// Total is the full size of the source, or -1 when unknown.
	Total int64
}

// Fetcher reads up to length bytes of a source starting at offset. A short
// or empty Data marks the end of the source.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string, offset, length int64) (Range, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, sourceID string, offset, length int64) (Range, error)

func (f FetcherFunc) Fetch(ctx context.Context, sourceID string, offset, length int64) (Range, error) {
	return f(ctx, sourceID, offset, length)
}

// HTTPFetcher issues Range requests. Servers that ignore Range and answer
// 200 are handled by slicing the full body.
type HTTPFetcher struct {
	Client *http.Client
	// Header is added to every request.
	Header http.Header
}

func (h *HTTPFetcher) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}

	return http.DefaultClient
}

func (h *HTTPFetcher) Fetch(ctx context.Context, sourceID string, offset, length int64) (Range, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceID, nil)
	if err != nil {
		return Range{}, fmt.Errorf("%w", err)
	}

	for k, vs := range h.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := h.client().Do(req)
	if err != nil {
		return Range{}, fmt.Errorf("%w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		data, err := io.ReadAll(io.LimitReader(resp.Body, length))
		if err != nil {
			return Range{}, fmt.Errorf("%w", err)
		}

		return Range{Data: data, Total: contentRangeTotal(resp.Header.Get("Content-Range"))}, nil

	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return Range{}, fmt.Errorf("%w", err)
		}

		total := int64(len(data))
		if offset >= total {
			return Range{Total: total}, nil
		}

		return Range{Data: data[offset:], Total: total}, nil

	case http.StatusRequestedRangeNotSatisfiable:
		return Range{Total: offset}, nil
	}

	return Range{}, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
}

// contentRangeTotal parses the size from "bytes a-b/total".
func contentRangeTotal(v string) int64 {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return -1
	}

	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return -1
	}

	return n
}

// FileFetcher reads local files. Source ids are paths, optionally with a
// file:// prefix, resolved against Root when relative.
type FileFetcher struct {
	Root string
}

func (f FileFetcher) path(sourceID string) string {
	p := strings.TrimPrefix(sourceID, "file://")
	if f.Root != "" && !strings.HasPrefix(p, "/") {
		p = f.Root + "/" + p
	}

	return p
}

func (f FileFetcher) Fetch(ctx context.Context, sourceID string, offset, length int64) (Range, error) {
	if err := ctx.Err(); err != nil {
		return Range{}, err
	}

	file, err := os.Open(f.path(sourceID))
	if err != nil {
		return Range{}, fmt.Errorf("%w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Range{}, fmt.Errorf("%w", err)
	}

	if offset >= info.Size() {
		return Range{Total: info.Size()}, nil
	}

	buf := make([]byte, min(length, info.Size()-offset))
	n, err := file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return Range{}, fmt.Errorf("%w", err)
	}

	return Range{Data: buf[:n], Total: info.Size()}, nil
}

// Router dispatches by URL scheme. Ids without a scheme go to Default.
type Router struct {
	Schemes map[string]Fetcher
	Default Fetcher
}

// NewRouter returns a router for http, https and local files.
func NewRouter(client *http.Client, root string) *Router {
	h := &HTTPFetcher{Client: client}
	file := FileFetcher{Root: root}

	return &Router{
		Schemes: map[string]Fetcher{
			"http":  h,
			"https": h,
			"file":  file,
		},
		Default: file,
	}
}

func (r *Router) Fetch(ctx context.Context, sourceID string, offset, length int64) (Range, error) {
	f := r.Default
	if u, err := url.Parse(sourceID); err == nil && u.Scheme != "" {
		if routed, ok := r.Schemes[strings.ToLower(u.Scheme)]; ok {
			f = routed
		} else {
			f = nil
		}
	}

	if f == nil {
		return Range{}, fmt.Errorf("%w: %q", ErrNoRoute, sourceID)
	}

	return f.Fetch(ctx, sourceID, offset, length)
}
