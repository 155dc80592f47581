// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides in-memory test doubles for the ingestion contracts.
package fake

import (
	"io"
	"sync/atomic"
)

// Source is an in-memory api.Source. When Fail is set every read returns it.
type Source struct {
	Data  []byte
	FD    uintptr
	Fail  error
	reads atomic.Int64
}

// Fd returns the configured descriptor value.
func (s *Source) Fd() uintptr { return s.FD }

// ReadAt serves the backing slice with standard io.ReaderAt semantics.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	s.reads.Add(1)
	if s.Fail != nil {
		return 0, s.Fail
	}
	if off >= int64(len(s.Data)) {
		return 0, io.EOF
	}
	n := copy(p, s.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Reads returns how many times ReadAt was called.
func (s *Source) Reads() int { return int(s.reads.Load()) }
