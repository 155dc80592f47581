// File: reactor/ring_portable.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable queue pair used where io_uring is unavailable (non-Linux builds,
// seccomp-restricted environments, pre-5.1 kernels). Staged reads are
// serviced by goroutines through the source's ReaderAt; completions land in
// a guarded slice with the same drain/advance semantics as the kernel ring.

package reactor

import (
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/momentics/hioload-ingest/api"
)

type portableReq struct {
	src      api.Source
	buf      []byte
	off      int64
	userData uint64
}

// portableRing simulates the submission/completion pair in process.
type portableRing struct {
	staged []portableReq

	mu     sync.Mutex
	arrive *sync.Cond
	done   []completion
	closed bool
}

func newPortableRing() *portableRing {
	r := &portableRing{}
	r.arrive = sync.NewCond(&r.mu)
	return r
}

func (r *portableRing) push(src api.Source, buf []byte, off int64, userData uint64) error {
	r.staged = append(r.staged, portableReq{src: src, buf: buf, off: off, userData: userData})
	return nil
}

// flush launches one service goroutine per staged read. Once launched, a
// read runs to completion; there is no cancellation.
func (r *portableRing) flush() (int, error) {
	n := len(r.staged)
	for _, req := range r.staged {
		go r.service(req)
	}
	r.staged = r.staged[:0]
	return n, nil
}

func (r *portableRing) service(req portableReq) {
	var n int
	var err error
	if len(req.buf) > 0 {
		n, err = req.src.ReadAt(req.buf, req.off)
	}
	res := StatusOf(n, err)
	r.mu.Lock()
	r.done = append(r.done, completion{userData: req.userData, res: res})
	r.mu.Unlock()
	r.arrive.Broadcast()
}

func (r *portableRing) wait(min int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.done) < min && !r.closed {
		r.arrive.Wait()
	}
	if r.closed {
		return api.ErrReactorClosed
	}
	return nil
}

func (r *portableRing) peek(out []completion) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := copy(out, r.done)
	if n > 0 {
		r.done = r.done[:copy(r.done, r.done[n:])]
	}
	return n
}

func (r *portableRing) close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.arrive.Broadcast()
	return nil
}

// StatusOf converts a ReaderAt outcome into a raw completion status the way
// the kernel ring reports one: a negative errno on failure, otherwise the
// byte count. io.EOF is not a failure; it marks a short read, which callers
// detect by comparing the count against the expected length.
func StatusOf(n int, err error) int32 {
	if err != nil && !errors.Is(err, io.EOF) {
		var errno syscall.Errno
		if errors.As(err, &errno) {
			return -int32(errno)
		}
		return -int32(syscall.EIO)
	}
	return int32(n)
}
