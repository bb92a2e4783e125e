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

// Package errors defines the error taxonomy of the process pool.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMaxProcs is returned when the pool is configured with a
	// non-positive maximum number of worker processes.
	ErrInvalidMaxProcs = errors.New("max procs must be a positive integer")

	// ErrInvalidMaxRequests is returned when the per-worker request budget is
	// negative. Zero means unlimited.
	ErrInvalidMaxRequests = errors.New("max requests must be zero or a positive integer")

	// ErrInvalidWorkerCommand is returned when the worker command is empty.
	ErrInvalidWorkerCommand = errors.New("worker command is required")

	// ErrPoolClosed is returned when an operation is attempted on a pool that
	// has been shut down.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrWorkerDied indicates that a worker process exited or its pipes closed
	// while requests were still outstanding. Every pending request of that
	// worker fails with this error.
	ErrWorkerDied = errors.New("worker process died")

	// ErrMailboxClosed is returned when sending or receiving on a mailbox that
	// has been closed.
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrProtocol indicates that a worker wrote a frame whose identifier has no
	// pending request slot. The condition is fatal to the mailbox.
	ErrProtocol = errors.New("protocol violation")

	// ErrCodec indicates a frame failed to encode or decode. The condition is
	// fatal to the mailbox.
	ErrCodec = errors.New("codec failure")

	// ErrSlotTaken indicates that a request identifier was assigned twice.
	ErrSlotTaken = errors.New("request slot already taken")

	// ErrPipelineClosed is returned when queueing on a pipeline after its
	// shutdown.
	ErrPipelineClosed = errors.New("pipeline is closed")

	// ErrEndOfStream is returned by a pipeline once it is shut down and every
	// queued result has been consumed.
	ErrEndOfStream = errors.New("end of stream")

	// ErrTaskNotRegistered is returned by the executor when a request names a
	// task that has not been registered.
	ErrTaskNotRegistered = errors.New("task is not registered")

	// ErrInstanceNotATask is returned when a registered type does not implement
	// the Task interface.
	ErrInstanceNotATask = errors.New("failed to create instance. Reason: instance does not implement the Task interface")
)

// TaskError is returned when a worker reports that a task failed. It carries
// the diagnostic text produced by the child process. The worker itself stays
// healthy; only the failed request surfaces this error.
type TaskError struct {
	diagnostic string
}

// NewTaskError creates a TaskError with the given diagnostic text.
func NewTaskError(diagnostic string) *TaskError {
	return &TaskError{diagnostic: diagnostic}
}

// Diagnostic returns the diagnostic text reported by the worker.
func (e *TaskError) Diagnostic() string {
	return e.diagnostic
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task failed: %s", e.diagnostic)
}
