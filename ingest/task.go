// File: ingest/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-file task is a three-state machine with two one-way transitions,
// each fired exactly once by an external trigger: the reactor drain moves it
// out of StageAwaitingRead, a pool worker moves it out of
// StageAwaitingDispatch. Both transitions are asserted with a
// compare-and-swap, so a double resumption fails loudly instead of
// corrupting the result.

package ingest

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-ingest/api"
	"github.com/momentics/hioload-ingest/pool"
	"github.com/momentics/hioload-ingest/reactor"
)

// Stage enumerates the states of a per-file task.
type Stage int32

const (
	// StageAwaitingRead: the read is in flight; only the reactor drain may
	// resume the task.
	StageAwaitingRead Stage = iota
	// StageAwaitingDispatch: the read completed; the parse continuation is
	// queued and only a pool worker may resume the task.
	StageAwaitingDispatch
	// StageDone: the result is sealed. No further resumption happens.
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingRead:
		return "awaiting-read"
	case StageAwaitingDispatch:
		return "awaiting-dispatch"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// task coordinates one read followed by one parse for a single file.
type task[T any] struct {
	file   *ReadOnlyFile
	buf    []byte
	parser api.Parser[T]
	exec   api.Executor

	stage  atomic.Int32
	status int32 // raw completion status, written in stage 1, read in stage 2
	result api.Result[T]
}

// newTask allocates the destination buffer and submits the task's single
// read. It returns immediately with the read in flight and the task in
// StageAwaitingRead.
func newTask[T any](file *ReadOnlyFile, parser api.Parser[T], exec api.Executor, bufs *pool.BytePool, r *reactor.Reactor) (*task[T], error) {
	t := &task[T]{
		file:   file,
		buf:    bufs.Acquire(int(file.Size())),
		parser: parser,
		exec:   exec,
	}
	t.result.Path = file.Path()
	if _, err := r.SubmitRead(file, t.buf, 0, t.onReadComplete); err != nil {
		bufs.Release(t.buf)
		return nil, err
	}
	return t, nil
}

// onReadComplete is the stage-one resumption, fired by the reactor drain on
// the driver goroutine. It stores the raw status and requests dispatch onto
// the pool, suspending the task a second time.
func (t *task[T]) onReadComplete(res int32) {
	if !t.stage.CompareAndSwap(int32(StageAwaitingRead), int32(StageAwaitingDispatch)) {
		panic(fmt.Sprintf("task %s resumed twice in %s", t.file.Path(), StageAwaitingRead))
	}
	t.status = res
	if err := t.exec.Submit(t.finish); err != nil {
		// The pool refused the continuation; finish on the calling
		// goroutine so the task still reaches StageDone.
		t.finish()
	}
}

// finish is the stage-two resumption, run on a pool worker. It validates the
// completion status, invokes the parser on a full read, and seals the result.
func (t *task[T]) finish() {
	t.result = finalize(t.file.Path(), t.file.Size(), t.status, t.buf, t.parser)
	if !t.stage.CompareAndSwap(int32(StageAwaitingDispatch), int32(StageDone)) {
		panic(fmt.Sprintf("task %s resumed twice in %s", t.file.Path(), StageAwaitingDispatch))
	}
}

// done reports whether the task reached its terminal state. Safe to call
// from the driver while workers run stage two.
func (t *task[T]) done() bool { return t.stage.Load() == int32(StageDone) }

// finalize classifies a raw completion status and parses on success. The
// sign and the transferred length are checked explicitly: a negative status
// is an OS error whatever its magnitude, and a positive one is only a
// success if it covers the whole file.
func finalize[T any](path string, size int64, status int32, buf []byte, parse api.Parser[T]) api.Result[T] {
	res := api.Result[T]{Path: path, Status: status}
	switch {
	case status < 0:
		res.Err = &api.ReadError{Path: path, Errno: -status}
	case int64(status) < size:
		res.Err = &api.ShortReadError{Path: path, Want: size, Got: int64(status)}
	default:
		payload, err := invokeParser(buf, parse)
		if err != nil {
			res.Err = &api.ParseError{Path: path, Err: err}
		} else {
			res.Payload = payload
		}
	}
	return res
}

// invokeParser shields the calling worker from parser panics; there is no
// other fault barrier between the parser and the pool.
func invokeParser[T any](buf []byte, parse api.Parser[T]) (payload T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return parse(buf)
}
