// File: ingest/file.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ingest

import (
	"os"

	"github.com/momentics/hioload-ingest/api"
)

// ReadOnlyFile is an open read-only file whose size is fixed at open time.
// It owns its descriptor until Close and implements api.Source.
type ReadOnlyFile struct {
	f    *os.File
	path string
	size int64
}

// Open opens path read-only and records its size. Failures are reported as
// *api.OpenError.
func Open(path string) (*ReadOnlyFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &api.OpenError{Path: path, Err: err}
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &api.OpenError{Path: path, Err: err}
	}
	return &ReadOnlyFile{f: f, path: path, size: st.Size()}, nil
}

// Fd returns the OS descriptor.
func (r *ReadOnlyFile) Fd() uintptr { return r.f.Fd() }

// Path returns the path the file was opened with.
func (r *ReadOnlyFile) Path() string { return r.path }

// Size returns the byte size recorded at open time.
func (r *ReadOnlyFile) Size() int64 { return r.size }

// ReadAt reads into p at offset off.
func (r *ReadOnlyFile) ReadAt(p []byte, off int64) (int, error) {
	return r.f.ReadAt(p, off)
}

// Close releases the descriptor.
func (r *ReadOnlyFile) Close() error { return r.f.Close() }
