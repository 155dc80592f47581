// Package api
// Author: momentics
//
// Executor contract for parallel dispatch of parse continuations.

package api

// Executor abstracts parallel task execution.
type Executor interface {
	// Submit schedules task for execution. It never blocks the caller.
	Submit(task func()) error

	// NumWorkers returns the number of worker routines.
	NumWorkers() int
}
