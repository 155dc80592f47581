// File: reactor/ring.go
// Author: momentics <momentics@gmail.com>
//
// Backend contract shared by the io_uring and portable queue pairs.

package reactor

import "github.com/momentics/hioload-ingest/api"

// completion is one drained completion-queue entry.
type completion struct {
	userData uint64
	res      int32
}

// ring abstracts the submission/completion queue pair. Implementations are
// driven by a single goroutine; none of the methods is safe for concurrent
// use.
type ring interface {
	// push stages one read tagged with userData without submitting it.
	push(src api.Source, buf []byte, off int64, userData uint64) error

	// flush submits every staged entry in one batch and returns the count.
	flush() (int, error)

	// wait blocks until at least min completions are visible in the
	// completion queue.
	wait(min int) error

	// peek drains up to len(out) visible completions into out without
	// blocking, advances the completion queue by that count, and returns
	// it. A drained entry is retired and never seen again.
	peek(out []completion) int

	// close releases the queue pair. No request may be in flight.
	close() error
}
