// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrAudioLoadFailed matches every *LoadError.
	ErrAudioLoadFailed = errors.New("audio load failed")
	// ErrCancelled is a normal outcome of Cancel or of the caller's context
	// ending, not a failure.
	ErrCancelled = errors.New("audio load cancelled")
	ErrClosed    = errors.New("cache closed")
)

var (
	ErrUnknownFormat = errors.New("unrecognised audio format")
	ErrHTTPStatus    = errors.New("unexpected HTTP status")
	ErrNoRoute       = errors.New("no fetcher for source")
)

// LoadError reports a network or decode failure with enough context for a
// caller-driven retry.
type LoadError struct {
	SourceID  string
	BytesRead int64
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %q (%d bytes read): %v", e.SourceID, e.BytesRead, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrAudioLoadFailed }
