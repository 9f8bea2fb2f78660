// SPDX-License-Identifier: EPL-2.0

package vocalengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ik5/vocalengine/mixer"
)

// Metadata travels with an uploaded mixdown. Zero fields are filled from the
// mixdown.
type Metadata struct {
	ID         string
	Title      string
	MIMEType   string
	Duration   time.Duration
	SampleRate int
	Channels   int
	Extra      map[string]string
}

// Persister stores a blob and returns where it can be fetched from. It owns
// its timeout and retry policy.
type Persister interface {
	Persist(ctx context.Context, blob []byte, meta Metadata) (string, error)
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, blob []byte, meta Metadata) (string, error)

func (f PersisterFunc) Persist(ctx context.Context, blob []byte, meta Metadata) (string, error) {
	return f(ctx, blob, meta)
}

// Upload hands m to p once. Failures wrap ErrUploadFailed; retrying is the
// caller's decision.
func Upload(ctx context.Context, p Persister, m *mixer.Mixdown, meta Metadata) (string, error) {
	if m == nil || len(m.Data) == 0 {
		return "", fmt.Errorf("%w: empty mixdown", ErrUploadFailed)
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.MIMEType == "" {
		meta.MIMEType = m.MIMEType
	}
	if m.Buffer != nil {
		if meta.Duration == 0 {
			meta.Duration = m.Duration()
		}
		if meta.SampleRate == 0 {
			meta.SampleRate = m.Buffer.Rate
		}
		if meta.Channels == 0 {
			meta.Channels = m.Buffer.NumChannels()
		}
	}

	uri, err := p.Persist(ctx, m.Data, meta)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUploadFailed, meta.ID, err)
	}
	if uri == "" {
		return "", fmt.Errorf("%w: %s: persister returned no location", ErrUploadFailed, meta.ID)
	}

	return uri, nil
}
