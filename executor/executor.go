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

// Package executor implements the worker side of the process pool: a loop
// that reads framed task requests from its standard input, executes them and
// writes framed responses to its standard output.
//
// The usual embedding is a self-exec binary. The parent process creates a
// pool whose default worker command re-executes the current binary; main
// diverts into the executor when the worker marker is set:
//
//	func main() {
//		if executor.IsWorker() {
//			exec := executor.New(executor.WithTasks(new(Doubler)))
//			if err := exec.Run(context.Background()); err != nil {
//				os.Exit(1)
//			}
//			return
//		}
//		// parent code
//	}
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/internal/codec"
	"github.com/tochemey/procpool/log"
)

// Environment variables the pool sets on its worker processes.
const (
	// EnvWorker marks a process as a pool worker. Its value is "1".
	EnvWorker = "PROCPOOL_WORKER"
	// EnvPath carries the include directories, joined with the OS path list
	// separator.
	EnvPath = "PROCPOOL_PATH"
	// EnvCompression carries the frame compression name both pipe ends agreed
	// on.
	EnvCompression = "PROCPOOL_COMPRESSION"
)

// Task is a unit of work the executor can run. A fresh instance of the
// registered type is created for every request, then Execute is called with
// the request arguments.
type Task interface {
	Execute(ctx context.Context, args []any) (any, error)
}

// Executor reads task requests from an input stream and writes the results
// back to an output stream. Requests are executed sequentially, in arrival
// order; the wire order of the responses is therefore the arrival order of
// the requests.
type Executor struct {
	registry Registry
	codec    *codec.Codec
	input    io.Reader
	output   io.Writer
	logger   log.Logger
}

// New creates an Executor. By default it reads from stdin, writes to stdout,
// uses the compression advertised by the pool through the environment and
// discards its logs.
func New(opts ...Option) *Executor {
	e := &Executor{
		registry: NewRegistry(),
		codec:    codec.New(Compression()),
		input:    os.Stdin,
		output:   os.Stdout,
		logger:   log.DiscardLogger,
	}
	for _, opt := range opts {
		opt.Apply(e)
	}
	return e
}

// Run executes the request loop until the input stream reaches EOF, the
// context is cancelled or a frame fails to decode. A clean EOF returns nil.
func (x *Executor) Run(ctx context.Context) error {
	reader := bufio.NewReader(x.input)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes(codec.Sentinel)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		id, payload, err := x.codec.DecodeFrame(line)
		if err != nil {
			// an unreadable frame means the pipe is out of sync; there is no
			// identifier to answer on
			x.logger.Errorf("dropping the connection: %v", err)
			return err
		}

		request := new(codec.Request)
		var response *codec.Response
		if err := codec.Unmarshal(payload, request); err != nil {
			response = &codec.Response{Status: codec.StatusFailed, Diagnostic: err.Error()}
		} else {
			x.logger.Debugf("executing task=(%s) id=(%d)", request.Name, id)
			response = x.execute(ctx, request)
		}

		out, err := codec.Marshal(response)
		if err != nil {
			// the task produced a result the codec cannot carry; report the
			// failure instead so the request does not hang
			out, _ = codec.Marshal(&codec.Response{Status: codec.StatusFailed, Diagnostic: err.Error()})
		}

		frame, err := x.codec.EncodeFrame(id, out)
		if err != nil {
			return err
		}
		if _, err := x.output.Write(frame); err != nil {
			return err
		}
	}
}

// execute runs a single request and never lets a task panic escape the loop.
func (x *Executor) execute(ctx context.Context, request *codec.Request) (response *codec.Response) {
	defer func() {
		if r := recover(); r != nil {
			response = &codec.Response{
				Status:     codec.StatusFailed,
				Diagnostic: fmt.Sprintf("task panicked: %v", r),
			}
		}
	}()

	rtype, ok := x.registry.TypeOf(request.Name)
	if !ok {
		return &codec.Response{
			Status:     codec.StatusFailed,
			Diagnostic: fmt.Sprintf("%v: %s", gerrors.ErrTaskNotRegistered, request.Name),
		}
	}

	// construct with args, then run: every request gets a fresh instance
	task, ok := reflect.New(rtype).Interface().(Task)
	if !ok {
		return &codec.Response{
			Status:     codec.StatusFailed,
			Diagnostic: gerrors.ErrInstanceNotATask.Error(),
		}
	}

	result, err := task.Execute(ctx, request.Args)
	if err != nil {
		return &codec.Response{Status: codec.StatusFailed, Diagnostic: err.Error()}
	}
	return &codec.Response{Status: codec.StatusOK, Result: result}
}

// IsWorker reports whether the current process was spawned as a pool worker.
func IsWorker() bool {
	return os.Getenv(EnvWorker) == "1"
}

// IncludePaths returns the include directories the pool exported to this
// worker process.
func IncludePaths() []string {
	return filepath.SplitList(os.Getenv(EnvPath))
}

// Compression returns the frame compression name the pool exported to this
// worker process.
func Compression() string {
	return os.Getenv(EnvCompression)
}
