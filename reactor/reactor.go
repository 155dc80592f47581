// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor owns the queue pair and the mapping from request id to pending
// continuation. Ids are assigned monotonically and retired exactly once, on
// drain: the map entry is deleted before the continuation runs, so no two
// references to the same pending continuation can exist and a completed
// request can never be resumed again.

package reactor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/momentics/hioload-ingest/api"
)

// Completion is a suspended continuation resumed exactly once when its read
// completes. res is the raw status: a negative errno, or bytes transferred.
type Completion func(res int32)

// binding links a pending request to its continuation. It also pins the
// destination buffer until the completion is drained, so the kernel never
// writes into freed memory.
type binding struct {
	resume Completion
	buf    []byte
}

// Reactor drives one submission/completion queue pair. It is not safe for
// concurrent use and must be driven by a single goroutine; it is referenced
// by address from its outstanding requests and must not be copied.
type Reactor struct {
	ring    ring
	depth   int
	pending map[uint64]binding
	nextID  uint64
	scratch []completion
	log     *zap.Logger
	closed  bool

	noCopy noCopy
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Option customizes reactor initialization.
type Option func(*Reactor)

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reactor) { r.log = log }
}

// withRing overrides the backend; used by tests.
func withRing(rg ring) Option {
	return func(r *Reactor) { r.ring = rg }
}

// New creates a reactor sized for depth concurrently outstanding reads.
// On Linux it sets up an io_uring; if setup is refused it falls back to the
// portable backend.
func New(depth int, opts ...Option) (*Reactor, error) {
	if depth < 1 {
		depth = 1
	}
	r := &Reactor{
		depth:   depth,
		pending: make(map[uint64]binding, depth),
		scratch: make([]completion, depth),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ring == nil {
		kr, err := newKernelRing(depth)
		if err != nil {
			r.log.Warn("kernel ring unavailable, using portable backend", zap.Error(err))
			kr = newPortableRing()
		}
		r.ring = kr
	}
	return r, nil
}

// SubmitRead stages a read of len(buf) bytes at off from src, tagged with a
// fresh request id, and records the continuation under that id. Nothing is
// submitted to the kernel until Flush.
func (r *Reactor) SubmitRead(src api.Source, buf []byte, off int64, resume Completion) (uint64, error) {
	if r.closed {
		return 0, api.ErrReactorClosed
	}
	if len(r.pending) >= r.depth {
		return 0, api.ErrQueueFull
	}
	id := r.nextID
	if err := r.ring.push(src, buf, off, id); err != nil {
		return 0, err
	}
	r.nextID++
	r.pending[id] = binding{resume: resume, buf: buf}
	return id, nil
}

// Flush submits all staged reads in one batch call, amortizing submission
// cost across the batch.
func (r *Reactor) Flush() error {
	if r.closed {
		return api.ErrReactorClosed
	}
	n, err := r.ring.flush()
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	r.log.Debug("batch flushed", zap.Int("requests", n))
	return nil
}

// Drain polls the completion queue without blocking and resumes the
// continuation of every completion currently visible, not just the first,
// so a busy poll loop is never starved. It returns the number processed,
// 0 when nothing was ready.
func (r *Reactor) Drain() int {
	if r.closed || len(r.pending) == 0 {
		return 0
	}
	total := 0
	for {
		n := r.ring.peek(r.scratch)
		if n == 0 {
			return total
		}
		for _, c := range r.scratch[:n] {
			b, ok := r.pending[c.userData]
			if !ok {
				r.log.Error("completion for unknown request", zap.Uint64("id", c.userData))
				continue
			}
			// Retire the id before resuming: after this point the
			// request cannot be observed, let alone resumed, twice.
			delete(r.pending, c.userData)
			b.resume(c.res)
		}
		total += n
		if n < len(r.scratch) {
			return total
		}
	}
}

// WaitAll is the blocking bulk mode: it repeatedly waits for at least one
// completion and drains, until no request is pending. Use it when nothing
// else competes for the calling goroutine; otherwise poll Drain.
func (r *Reactor) WaitAll() error {
	for len(r.pending) > 0 {
		if err := r.ring.wait(1); err != nil {
			return err
		}
		r.Drain()
	}
	return nil
}

// Pending returns the number of requests whose completion has not yet been
// drained.
func (r *Reactor) Pending() int { return len(r.pending) }

// Close releases the queue pair. All submitted requests must have been
// drained first.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.ring.close()
}
