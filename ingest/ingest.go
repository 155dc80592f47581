// File: ingest/ingest.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ingestor is the driver: one task per input file, one batched submission,
// then a non-blocking drain loop until every task is terminal. Two further
// modes are provided: RunBulk keeps everything on the calling goroutine with
// the reactor's blocking bulk wait, and RunSync is the naive synchronous
// baseline.

package ingest

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/hioload-ingest/api"
	"github.com/momentics/hioload-ingest/internal/concurrency"
	"github.com/momentics/hioload-ingest/pool"
	"github.com/momentics/hioload-ingest/reactor"
)

// Config holds the tunable parameters of an Ingestor.
type Config struct {
	// QueueDepth sizes the reactor's queue pair. Zero or less sizes it to
	// each run's input list.
	QueueDepth int
	// NumWorkers is the parse pool size. Zero or less uses runtime.NumCPU.
	NumWorkers int
	// Logger receives structured progress logs. Nil means no logging.
	Logger *zap.Logger
}

// DefaultConfig returns a baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		QueueDepth: 0,
		NumWorkers: runtime.NumCPU(),
	}
}

// Ingestor ingests batches of files with a caller-supplied parser.
type Ingestor[T any] struct {
	cfg    Config
	parser api.Parser[T]
	bufs   *pool.BytePool
	log    *zap.Logger
}

// New creates an Ingestor around the external parser collaborator.
func New[T any](parser api.Parser[T], cfg *Config) (*Ingestor[T], error) {
	if parser == nil {
		return nil, errors.New("parser cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor[T]{
		cfg:    *cfg,
		parser: parser,
		bufs:   pool.NewBytePool(),
		log:    log,
	}, nil
}

// Run ingests paths with reads and parses overlapped: every read is
// submitted in one batch, completions are drained without blocking, and each
// completed task's parse runs on a pool worker. The result slice matches
// paths in length and order regardless of completion order. Per-file
// failures are captured in that file's Result; only reactor or pool
// construction failure is returned as an error.
func (in *Ingestor[T]) Run(paths []string) ([]api.Result[T], error) {
	log := in.log.With(zap.String("runID", uuid.NewString()))
	results := make([]api.Result[T], len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	files, open := in.openAll(paths, results)
	defer closeAll(files)
	if open == 0 {
		return results, nil
	}

	r, err := reactor.New(in.depthFor(open), reactor.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("reactor init error: %w", err)
	}
	defer r.Close()

	workers := concurrency.New(in.cfg.NumWorkers, log)

	tasks := in.startTasks(files, results, workers, r)
	if err := r.Flush(); err != nil {
		workers.Close()
		return nil, fmt.Errorf("batch submit error: %w", err)
	}
	log.Debug("batch submitted",
		zap.Int("files", open),
		zap.Int("workers", workers.NumWorkers()))

	// Busy-poll the completion queue; yield between empty polls so the
	// parse workers keep making progress on a loaded machine.
	for !allDone(tasks) {
		if r.Drain() == 0 {
			runtime.Gosched()
		}
	}
	workers.Close()

	in.collect(tasks, results)
	log.Info("run complete", zap.Int("files", len(paths)), zap.Int("opened", open))
	return results, nil
}

// RunBulk is the blocking bulk mode: submit all reads, then repeatedly wait
// for at least one completion and drain until none is pending, parsing each
// completed file inline on the calling goroutine. No pool is involved; use
// it when nothing else competes for the caller.
func (in *Ingestor[T]) RunBulk(paths []string) ([]api.Result[T], error) {
	log := in.log.With(zap.String("runID", uuid.NewString()))
	results := make([]api.Result[T], len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	files, open := in.openAll(paths, results)
	defer closeAll(files)
	if open == 0 {
		return results, nil
	}

	r, err := reactor.New(in.depthFor(open), reactor.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("reactor init error: %w", err)
	}
	defer r.Close()

	tasks := in.startTasks(files, results, inlineExecutor{}, r)
	if err := r.Flush(); err != nil {
		return nil, fmt.Errorf("batch submit error: %w", err)
	}
	if err := r.WaitAll(); err != nil {
		return nil, fmt.Errorf("bulk wait error: %w", err)
	}

	in.collect(tasks, results)
	log.Info("bulk run complete", zap.Int("files", len(paths)), zap.Int("opened", open))
	return results, nil
}

// RunSync is the naive synchronous baseline: each file is read with blocking
// I/O and parsed before the next one is touched.
func (in *Ingestor[T]) RunSync(paths []string) []api.Result[T] {
	results := make([]api.Result[T], len(paths))
	for i, p := range paths {
		results[i] = in.readSync(p)
	}
	return results
}

func (in *Ingestor[T]) readSync(path string) api.Result[T] {
	f, err := Open(path)
	if err != nil {
		return api.Result[T]{Path: path, Err: err}
	}
	defer f.Close()

	buf := in.bufs.Acquire(int(f.Size()))
	defer in.bufs.Release(buf)
	var n int
	var rerr error
	if len(buf) > 0 {
		n, rerr = f.ReadAt(buf, 0)
	}
	return finalize(path, f.Size(), reactor.StatusOf(n, rerr), buf, in.parser)
}

// openAll opens every path, recording open failures directly into results.
// It returns the file slice (nil entries for failed opens) and the open count.
func (in *Ingestor[T]) openAll(paths []string, results []api.Result[T]) ([]*ReadOnlyFile, int) {
	files := make([]*ReadOnlyFile, len(paths))
	open := 0
	for i, p := range paths {
		f, err := Open(p)
		if err != nil {
			results[i] = api.Result[T]{Path: p, Err: err}
			continue
		}
		files[i] = f
		open++
	}
	return files, open
}

// startTasks creates one task per opened file. A submission failure is
// captured as that file's Result, like any other per-file error.
func (in *Ingestor[T]) startTasks(files []*ReadOnlyFile, results []api.Result[T], exec api.Executor, r *reactor.Reactor) []*task[T] {
	tasks := make([]*task[T], len(files))
	for i, f := range files {
		if f == nil {
			continue
		}
		t, err := newTask(f, in.parser, exec, in.bufs, r)
		if err != nil {
			results[i] = api.Result[T]{Path: f.Path(), Err: err}
			continue
		}
		tasks[i] = t
	}
	return tasks
}

// collect copies each terminal task's result into its input slot and
// recycles the read buffers.
func (in *Ingestor[T]) collect(tasks []*task[T], results []api.Result[T]) {
	for i, t := range tasks {
		if t == nil {
			continue
		}
		results[i] = t.result
		in.bufs.Release(t.buf)
	}
}

func (in *Ingestor[T]) depthFor(open int) int {
	if in.cfg.QueueDepth > 0 && in.cfg.QueueDepth >= open {
		return in.cfg.QueueDepth
	}
	return open
}

func allDone[T any](tasks []*task[T]) bool {
	for _, t := range tasks {
		if t != nil && !t.done() {
			return false
		}
	}
	return true
}

func closeAll(files []*ReadOnlyFile) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}

// inlineExecutor runs each unit on the caller; it is the no-pool dispatch
// used by RunBulk.
type inlineExecutor struct{}

func (inlineExecutor) Submit(task func()) error {
	task()
	return nil
}

func (inlineExecutor) NumWorkers() int { return 1 }
