// File: reactor/reactor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Exercises the reactor against the portable backend so the tests run the
// same everywhere; the kernel ring has its own Linux-only test.

package reactor

import (
	"runtime"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ingest/api"
	"github.com/momentics/hioload-ingest/fake"
)

func newTestReactor(t *testing.T, depth int) *Reactor {
	t.Helper()
	r, err := New(depth, withRing(newPortableRing()))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// drainUntil polls Drain until want completions have been processed.
func drainUntil(r *Reactor, want int) int {
	total := 0
	for total < want {
		n := r.Drain()
		if n == 0 {
			runtime.Gosched()
			continue
		}
		total += n
	}
	return total
}

func TestDrainResumesEveryCompletionOnce(t *testing.T) {
	const n = 8
	r := newTestReactor(t, n)

	resumed := make([]int, n)
	status := make([]int32, n)
	for i := 0; i < n; i++ {
		i := i
		src := &fake.Source{Data: make([]byte, 16+i)}
		buf := make([]byte, len(src.Data))
		_, err := r.SubmitRead(src, buf, 0, func(res int32) {
			resumed[i]++
			status[i] = res
		})
		require.NoError(t, err)
	}
	require.NoError(t, r.Flush())
	drainUntil(r, n)

	for i := 0; i < n; i++ {
		require.Equal(t, 1, resumed[i], "continuation %d resumption count", i)
		require.EqualValues(t, 16+i, status[i], "continuation %d status", i)
	}
	require.Zero(t, r.Pending())
	require.Zero(t, r.Drain(), "drain after all ids retired")
}

func TestDrainReturnsZeroWhenNothingReady(t *testing.T) {
	r := newTestReactor(t, 4)
	require.Zero(t, r.Drain())
}

func TestShortReadStatusIsByteCount(t *testing.T) {
	r := newTestReactor(t, 1)
	src := &fake.Source{Data: []byte("abc")}
	buf := make([]byte, 10) // ask for more than the source holds
	var status int32 = -1
	_, err := r.SubmitRead(src, buf, 0, func(res int32) { status = res })
	require.NoError(t, err)
	require.NoError(t, r.Flush())
	drainUntil(r, 1)
	require.EqualValues(t, 3, status, "short read must report bytes transferred, not an error")
}

func TestFailedReadStatusIsNegativeErrno(t *testing.T) {
	r := newTestReactor(t, 1)
	src := &fake.Source{Data: []byte("abc"), Fail: syscall.EACCES}
	var status int32
	_, err := r.SubmitRead(src, make([]byte, 3), 0, func(res int32) { status = res })
	require.NoError(t, err)
	require.NoError(t, r.Flush())
	drainUntil(r, 1)
	require.EqualValues(t, -int32(syscall.EACCES), status)
}

func TestSubmitBeyondDepthRejected(t *testing.T) {
	r := newTestReactor(t, 1)
	src := &fake.Source{Data: []byte("x")}
	_, err := r.SubmitRead(src, make([]byte, 1), 0, func(int32) {})
	require.NoError(t, err)
	_, err = r.SubmitRead(src, make([]byte, 1), 0, func(int32) {})
	require.ErrorIs(t, err, api.ErrQueueFull)
}

func TestWaitAllDrainsEverythingBlocking(t *testing.T) {
	const n = 16
	r := newTestReactor(t, n)
	status := make([]int32, n)
	for i := 0; i < n; i++ {
		i := i
		src := &fake.Source{Data: make([]byte, 4)}
		_, err := r.SubmitRead(src, make([]byte, 4), 0, func(res int32) { status[i] = res })
		require.NoError(t, err)
	}
	require.NoError(t, r.Flush())
	require.NoError(t, r.WaitAll())
	require.Zero(t, r.Pending())
	for i, s := range status {
		require.EqualValues(t, 4, s, "request %d", i)
	}
}

func TestCompletionsDemultiplexedByID(t *testing.T) {
	// Distinct sizes per request prove each continuation got its own
	// completion even though arrival order is unspecified.
	const n = 12
	r := newTestReactor(t, n)
	status := make([]int32, n)
	for i := 0; i < n; i++ {
		i := i
		size := 1 + i*3
		src := &fake.Source{Data: make([]byte, size)}
		_, err := r.SubmitRead(src, make([]byte, size), 0, func(res int32) { status[i] = res })
		require.NoError(t, err)
	}
	require.NoError(t, r.Flush())
	require.NoError(t, r.WaitAll())
	for i := 0; i < n; i++ {
		require.EqualValues(t, 1+i*3, status[i], "request %d got another request's completion", i)
	}
}

func TestSubmitAfterCloseRejected(t *testing.T) {
	r, err := New(1, withRing(newPortableRing()))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	_, err = r.SubmitRead(&fake.Source{}, nil, 0, func(int32) {})
	require.ErrorIs(t, err, api.ErrReactorClosed)
}

func TestZeroLengthReadCompletes(t *testing.T) {
	r := newTestReactor(t, 1)
	var status int32 = -1
	_, err := r.SubmitRead(&fake.Source{}, nil, 0, func(res int32) { status = res })
	require.NoError(t, err)
	require.NoError(t, r.Flush())
	require.NoError(t, r.WaitAll())
	require.Zero(t, status)
}
