// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error kinds for per-file ingestion failures. Each is captured into the
// affected file's Result; none of them aborts a run.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrPoolClosed    = fmt.Errorf("worker pool is closed")
	ErrReactorClosed = fmt.Errorf("reactor is closed")
	ErrQueueFull     = fmt.Errorf("submission queue is full")
)

// OpenError reports a path that could not be opened or stat'ed.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string { return fmt.Sprintf("open %s: %v", e.Path, e.Err) }

func (e *OpenError) Unwrap() error { return e.Err }

// ReadError reports a read whose completion status was negative.
type ReadError struct {
	Path  string
	Errno int32 // positive OS errno value
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: errno %d", e.Path, e.Errno)
}

// ShortReadError reports a read that transferred fewer bytes than the
// file's stated size. A non-zero status alone is not evidence of success;
// the transferred length must match the expected length.
type ShortReadError struct {
	Path string
	Want int64
	Got  int64
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read %s: got %d of %d bytes", e.Path, e.Got, e.Want)
}

// ParseError wraps a failure, or a recovered panic, from the external parser.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Path, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }
