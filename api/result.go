// File: api/result.go
// Author: momentics <momentics@gmail.com>
//
// Generic per-file ingestion result.

package api

// Result is the outcome of ingesting a single file. It is produced exactly
// once per file and never mutated afterwards.
type Result[T any] struct {
	// Path is the originating file path, as given to the driver.
	Path string

	// Status is the raw read completion status: a negative errno on I/O
	// failure, otherwise the number of bytes transferred.
	Status int32

	// Payload is the parser output. Meaningful only when Err is nil.
	Payload T

	// Err classifies the failure for this file, if any. A non-nil Err on
	// one file never affects the results of the others.
	Err error
}

// Ok reports whether the file was read and parsed successfully.
func (r Result[T]) Ok() bool { return r.Err == nil }

// Parser turns a raw byte buffer into a structured payload. It is the
// external collaborator of the ingestion core: any internal failure must be
// returned as an error, and the buffer must not be retained after the call
// returns, since it is recycled.
type Parser[T any] func(buf []byte) (T, error)
