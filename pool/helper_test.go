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
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tochemey/procpool/executor"
)

// TestMain doubles as the worker entry point: the test binary re-executed by
// the pool diverts into the executor loop before any test runs.
func TestMain(m *testing.M) {
	if executor.IsWorker() {
		exec := executor.New(executor.WithTasks(
			new(doubler),
			new(failer),
			new(sleeper),
			new(expander),
		))
		_ = exec.Run(context.Background())
		os.Exit(0)
	}

	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("os/exec.(*Cmd).writerDescriptor.func1"),
		goleak.IgnoreAnyFunction("github.com/tochemey/procpool/pool.newWorker.func1"),
		goleak.IgnoreAnyFunction("github.com/tochemey/procpool/pool.(*worker).retire.func1"))
}

// doubler returns twice its single integer argument.
type doubler struct{}

func (doubler) Execute(_ context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("doubler wants one argument, got %d", len(args))
	}
	return 2 * toInt64(args[0]), nil
}

// failer always fails with its single string argument as diagnostic.
type failer struct{}

func (failer) Execute(_ context.Context, args []any) (any, error) {
	if len(args) == 1 {
		return nil, errors.New(args[0].(string))
	}
	return nil, errors.New("failer failed")
}

// sleeper sleeps for its single argument in milliseconds then echoes it.
type sleeper struct{}

func (sleeper) Execute(_ context.Context, args []any) (any, error) {
	duration := time.Duration(toInt64(args[0])) * time.Millisecond
	time.Sleep(duration)
	return args[0], nil
}

// expander returns its single argument twice, as a slice.
type expander struct{}

func (expander) Execute(_ context.Context, args []any) (any, error) {
	return []any{args[0], args[0]}, nil
}

// toInt64 normalizes the integer types the codec may hand to a task.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case uint32:
		return int64(n)
	case uint16:
		return int64(n)
	case uint8:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
