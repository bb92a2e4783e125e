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

package executor

import (
	"io"

	"github.com/tochemey/procpool/internal/codec"
	"github.com/tochemey/procpool/log"
)

// Option is the interface that applies an Executor option.
type Option interface {
	// Apply sets the Option value of an Executor.
	Apply(executor *Executor)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(executor *Executor)

// Apply applies the Executor's option
func (f OptionFunc) Apply(executor *Executor) {
	f(executor)
}

// WithTasks registers the given task types with the executor.
func WithTasks(tasks ...Task) Option {
	return OptionFunc(func(executor *Executor) {
		for _, task := range tasks {
			executor.registry.Register(task)
		}
	})
}

// WithRegistry sets a pre-populated task registry.
func WithRegistry(registry Registry) Option {
	return OptionFunc(func(executor *Executor) {
		executor.registry = registry
	})
}

// WithLogger sets the executor logger. Workers log to stderr only; stdout
// belongs to the wire protocol.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(executor *Executor) {
		executor.logger = logger
	})
}

// WithCompression overrides the frame compression advertised through the
// environment. Both pipe ends must agree.
func WithCompression(name string) Option {
	return OptionFunc(func(executor *Executor) {
		executor.codec = codec.New(name)
	})
}

// WithStreams overrides the executor streams. Intended for embedding the
// executor outside a worker process, tests included.
func WithStreams(input io.Reader, output io.Writer) Option {
	return OptionFunc(func(executor *Executor) {
		executor.input = input
		executor.output = output
	})
}
