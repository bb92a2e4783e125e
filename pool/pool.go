// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package pool implements a worker-process pool: a bounded set of child
// processes executing registered tasks, multiplexing many in-flight requests
// over one pipe pair per worker.
package pool

import (
	"context"
	"sync"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/future"
	"github.com/tochemey/procpool/internal/codec"
)

// Pool schedules task execution over a bounded set of worker processes.
//
// The scheduling core is a counting semaphore of worker permits. Acquiring a
// permit yields a warm idle worker when one exists, otherwise a freshly
// spawned one. A worker's permit is released as soon as its response frame
// is inbound, before the payload has been decoded, so the worker becomes
// reassignable one step earlier than the result is delivered. Workers that
// exhaust their request budget are replaced instead of being returned to the
// idle set.
//
// A shut-down pool stays usable: it resets to running and empty, per the
// semantics of Shutdown.
type Pool struct {
	config *config

	permits *semaphore.Weighted
	free    *atomic.Int64

	lock sync.Mutex
	// idle workers, most recently released last; acquisition pops from the
	// back so warm workers are preferred
	idle []*worker
	live goset.Set[*worker]

	running *atomic.Bool
	spawned *atomic.Int64
}

// New creates a Pool with the given options.
func New(opts ...Option) (*Pool, error) {
	config := newConfig()
	for _, opt := range opts {
		opt.Apply(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Pool{
		config:  config,
		permits: semaphore.NewWeighted(config.maxProcs),
		free:    atomic.NewInt64(config.maxProcs),
		live:    goset.NewSet[*worker](),
		running: atomic.NewBool(true),
		spawned: atomic.NewInt64(0),
	}, nil
}

// Capacity returns the number of worker permits currently available.
func (x *Pool) Capacity() int {
	return int(x.free.Load())
}

// Workers returns the number of live worker processes, busy or idle.
func (x *Pool) Workers() int {
	return x.live.Cardinality()
}

// Spawned returns the total number of worker processes spawned over the
// pool's lifetime, replacements included.
func (x *Pool) Spawned() int {
	return int(x.spawned.Load())
}

// Process runs the named task with the given arguments on some worker and
// blocks until its result is available.
func (x *Pool) Process(ctx context.Context, name string, args ...any) (any, error) {
	deferred, err := x.Defer(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	result := deferred.AwaitUninterruptible()
	return result.Success(), result.Failure()
}

// Defer enqueues the named task on some worker and returns immediately. The
// returned future yields the result; errors of the execution surface there.
//
// The request is on the wire when Defer returns: a worker permit has been
// consumed and the task will run even if the future is never awaited.
func (x *Pool) Defer(ctx context.Context, name string, args ...any) (future.Future[any], error) {
	w, err := x.acquire(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := codec.Marshal(&codec.Request{Name: name, Args: args})
	if err != nil {
		x.release(w)
		return nil, err
	}

	id, err := w.send(payload)
	if err != nil {
		x.release(w)
		return nil, err
	}

	return future.New(ctx, func(fctx context.Context) (any, error) {
		// release the permit on readability, not on receipt: the mailbox is
		// multiplexed by id, so the worker can take the next request while
		// this response is still being decoded
		if err := w.readable(fctx); err != nil {
			w.abandon(id)
			x.release(w)
			return nil, err
		}
		x.release(w)
		return w.recv(fctx, id)
	}), nil
}

// Map runs the named task once per element of args, concurrently, and
// returns the results in input order regardless of completion order. A task
// returning a slice has its elements spliced into the result at its
// position. The first error in input order is returned; sibling tasks are
// still driven to completion so no permit leaks.
func (x *Pool) Map(ctx context.Context, name string, args []any) ([]any, error) {
	futures := make([]future.Future[any], len(args))
	errs := make([]error, len(args))
	for i, arg := range args {
		futures[i], errs[i] = x.Defer(ctx, name, arg)
	}

	results := make([]any, 0, len(args))
	var firstErr error
	for i := range futures {
		err := errs[i]
		var value any
		if err == nil {
			result := futures[i].AwaitUninterruptible()
			value, err = result.Success(), result.Failure()
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if flattened, ok := value.([]any); ok {
			results = append(results, flattened...)
			continue
		}
		results = append(results, value)
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Pipeline creates a new producer/consumer pipeline bound to this pool.
func (x *Pool) Pipeline() (*Pipeline, error) {
	if !x.running.Load() {
		return nil, gerrors.ErrPoolClosed
	}
	return newPipeline(x), nil
}

// Shutdown terminates every worker and fails every in-flight request with
// ErrPoolClosed. It is idempotent, and the pool may be reused afterwards: it
// comes back running and empty.
func (x *Pool) Shutdown(ctx context.Context) error {
	if !x.running.CompareAndSwap(true, false) {
		return nil
	}

	x.lock.Lock()
	workers := x.live.ToSlice()
	x.live.Clear()
	x.idle = nil
	x.lock.Unlock()

	eg, _ := errgroup.WithContext(ctx)
	for _, w := range workers {
		eg.Go(func() error {
			w.shutdown(gerrors.ErrPoolClosed)
			return nil
		})
	}
	err := eg.Wait()

	x.running.Store(true)
	return err
}

// acquire blocks until a worker permit is available, then hands out a warm
// idle worker or spawns a new one.
func (x *Pool) acquire(ctx context.Context) (*worker, error) {
	if !x.running.Load() {
		return nil, gerrors.ErrPoolClosed
	}
	if err := x.permits.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	x.free.Dec()

	// the pool may have been shut down while blocked on the semaphore
	if !x.running.Load() {
		x.replace()
		return nil, gerrors.ErrPoolClosed
	}

	for {
		x.lock.Lock()
		if len(x.idle) == 0 {
			x.lock.Unlock()
			break
		}
		w := x.idle[len(x.idle)-1]
		x.idle = x.idle[:len(x.idle)-1]
		x.lock.Unlock()

		if w.alive() {
			return w, nil
		}
		// went stale while idling
		x.live.Remove(w)
		w.retire()
	}

	w, err := x.spawn(ctx)
	if err != nil {
		x.replace()
		return nil, err
	}
	x.live.Add(w)
	return w, nil
}

// release returns a worker's permit. A worker that is still alive goes back
// to the idle set; an exhausted or dead one is retired and its slot becomes
// available for a fresh spawn.
func (x *Pool) release(w *worker) {
	if x.running.Load() && w.alive() {
		x.lock.Lock()
		x.idle = append(x.idle, w)
		x.lock.Unlock()
	} else {
		x.live.Remove(w)
		w.retire()
	}
	x.replace()
}

// replace re-issues one permit.
func (x *Pool) replace() {
	x.free.Inc()
	x.permits.Release(1)
}

// spawn starts a new worker process, retrying with backoff.
func (x *Pool) spawn(ctx context.Context) (*worker, error) {
	var w *worker
	retrier := retry.NewRetrier(x.config.spawnRetries, x.config.spawnInterval, x.config.spawnTimeout)
	err := retrier.RunContext(ctx, func(context.Context) error {
		spawned, err := newWorker(x.config)
		if err != nil {
			x.config.logger.Warnf("spawning worker failed: %v", err)
			return err
		}
		w = spawned
		return nil
	})
	if err != nil {
		return nil, err
	}
	x.spawned.Inc()
	return w, nil
}
