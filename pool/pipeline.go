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

package pool

import (
	"context"

	gods "github.com/Workiva/go-datastructures/queue"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/future"
)

// Pipeline is a producer/consumer queue bound to a pool. The producer side
// enqueues tasks; the consumer side pops results in enqueue order. Capacity
// pressure comes from the pool permits: Queue blocks while every worker is
// busy.
//
// One producer and one consumer are expected. After Shutdown the consumer
// still drains every result that was queued, then observes ErrEndOfStream.
type Pipeline struct {
	pool    *Pool
	pending *gods.Queue
	closed  *atomic.Bool
}

func newPipeline(pool *Pool) *Pipeline {
	return &Pipeline{
		pool:    pool,
		pending: gods.New(16),
		closed:  atomic.NewBool(false),
	}
}

// Queue enqueues the named task with the given arguments. The task is
// dispatched right away; its pending result joins the consumer queue.
func (x *Pipeline) Queue(ctx context.Context, name string, args ...any) error {
	if x.closed.Load() {
		return gerrors.ErrPipelineClosed
	}

	deferred, err := x.pool.Defer(ctx, name, args...)
	if err != nil {
		return err
	}
	if err := x.pending.Put(deferred); err != nil {
		return gerrors.ErrPipelineClosed
	}
	return nil
}

// Next blocks until the oldest queued task completes and returns its result.
// Once the pipeline is shut down and drained it returns ErrEndOfStream. When
// the owning pool is shut down with results still pending, the terminal
// failure of each pending task is surfaced here.
func (x *Pipeline) Next() (any, error) {
	if x.closed.Load() && x.pending.Empty() {
		x.pending.Dispose()
		return nil, gerrors.ErrEndOfStream
	}

	items, err := x.pending.Get(1)
	if err != nil {
		// disposed by Shutdown while this consumer was parked
		return nil, gerrors.ErrEndOfStream
	}

	deferred := items[0].(future.Future[any])
	result := deferred.AwaitUninterruptible()
	return result.Success(), result.Failure()
}

// Shutdown closes the producer side. Already-queued tasks stay consumable;
// subsequent Queue calls fail with ErrPipelineClosed.
func (x *Pipeline) Shutdown() {
	if !x.closed.CompareAndSwap(false, true) {
		return
	}
	if x.pending.Empty() {
		x.pending.Dispose()
	}
}
