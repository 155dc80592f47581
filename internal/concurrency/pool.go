// File: internal/concurrency/pool.go
// Package concurrency implements the fixed worker pool that executes parse
// continuations dispatched off the reactor drain.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The pool is a single unbounded FIFO under one mutex with two condition
// variables: one signaling "work available" to idle workers, one signaling
// "all work drained" to Wait/Close. Contention is low (one wakeup per file),
// so coarse locking is the right trade.

package concurrency

import (
	"runtime"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-ingest/api"
)

// Pool manages a fixed set of worker goroutines draining a shared queue.
type Pool struct {
	mu        sync.Mutex
	tasks     *queue.Queue // FIFO of func(), guarded by mu
	available *sync.Cond   // work available, or pool closing
	drained   *sync.Cond   // queue empty and nothing running
	running   int          // units currently executing
	closing   bool         // set once under mu; enqueue is rejected after this
	closed    bool
	workers   int
	wg        sync.WaitGroup
	log       *zap.Logger
}

// New starts a pool of the given size. A size of zero or less falls back to
// runtime.NumCPU, and to a single worker if that is unavailable.
func New(workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		tasks:   queue.New(),
		workers: workers,
		log:     log,
	}
	p.available = sync.NewCond(&p.mu)
	p.drained = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// worker is the main loop of one pool goroutine: block until the queue is
// non-empty or the pool is closing, pop one unit, run it to completion, loop.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.log.Debug("worker started", zap.Int("workerID", id))
	defer p.log.Debug("worker stopped", zap.Int("workerID", id))
	for {
		p.mu.Lock()
		for !p.closing && p.tasks.Length() == 0 {
			p.available.Wait()
		}
		if p.closing && p.tasks.Length() == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.tasks.Remove().(func())
		p.running++
		p.mu.Unlock()

		p.execute(fn)

		p.mu.Lock()
		p.running--
		if p.running == 0 && p.tasks.Length() == 0 {
			p.drained.Broadcast()
		}
		p.mu.Unlock()
	}
}

// execute runs one unit, keeping the worker alive across panics. Errors
// raised by a unit are the unit's own concern; the pool neither retries
// nor reports them.
func (p *Pool) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Submit appends a unit of work and wakes one idle worker. It never blocks
// and is rejected once shutdown has begun.
func (p *Pool) Submit(fn func()) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return api.ErrPoolClosed
	}
	p.tasks.Add(fn)
	p.mu.Unlock()
	p.available.Signal()
	return nil
}

// Schedule enqueues a suspended continuation for resumption on an arbitrary
// worker. It is the stage-two suspension point of a task.
func (p *Pool) Schedule(continuation func()) error {
	return p.Submit(continuation)
}

// NumWorkers returns the fixed pool size.
func (p *Pool) NumWorkers() int { return p.workers }

// Wait blocks until the queue is empty and no unit is executing.
func (p *Pool) Wait() {
	p.mu.Lock()
	for p.running > 0 || p.tasks.Length() > 0 {
		p.drained.Wait()
	}
	p.mu.Unlock()
}

// Close drains all queued work, then signals every worker to stop and joins
// them. A second Close is a no-op. Submitting after Close begins returns
// api.ErrPoolClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	for p.running > 0 || p.tasks.Length() > 0 {
		p.drained.Wait()
	}
	p.closing = true
	p.closed = true
	p.mu.Unlock()
	p.available.Broadcast()
	p.wg.Wait()
}
