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
	"os"
	"runtime"
	"time"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/internal/validation"
	"github.com/tochemey/procpool/log"
)

// config holds the pool settings.
type config struct {
	maxProcs      int64
	maxReqs       int64
	workerCommand string
	workerArgs    []string
	includePaths  []string
	compression   string
	logger        log.Logger
	spawnRetries  int
	spawnInterval time.Duration
	spawnTimeout  time.Duration
}

// newConfig returns the default pool settings: one worker per CPU, unlimited
// requests per worker and a worker command that re-executes the current
// binary.
func newConfig() *config {
	command, _ := os.Executable()
	return &config{
		maxProcs:      int64(runtime.NumCPU()),
		maxReqs:       0,
		workerCommand: command,
		logger:        log.DiscardLogger,
		spawnRetries:  3,
		spawnInterval: 100 * time.Millisecond,
		spawnTimeout:  time.Second,
	}
}

// Validate implements validation.Validator
func (c *config) Validate() error {
	return validation.New(validation.AllErrors()).
		AddValidator(validation.NewConditionValidator(c.maxProcs > 0, gerrors.ErrInvalidMaxProcs)).
		AddValidator(validation.NewConditionValidator(c.maxReqs >= 0, gerrors.ErrInvalidMaxRequests)).
		AddValidator(validation.NewConditionValidator(c.workerCommand != "", gerrors.ErrInvalidWorkerCommand)).
		Validate()
}

// Option is the interface that applies a Pool option.
type Option interface {
	// Apply sets the Option value of a Pool config.
	Apply(config *config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *config)

// Apply applies the Pool's option
func (f OptionFunc) Apply(config *config) {
	f(config)
}

// WithMaxProcs sets the maximum number of concurrent worker processes.
// It defaults to the detected CPU count.
func WithMaxProcs(maxProcs int) Option {
	return OptionFunc(func(config *config) {
		config.maxProcs = int64(maxProcs)
	})
}

// WithMaxRequests sets the per-worker request budget. Once a worker has
// served that many requests it is terminated and a fresh one is spawned in
// its place, bounding any resource leakage in the child. Zero means
// unlimited.
func WithMaxRequests(maxReqs int) Option {
	return OptionFunc(func(config *config) {
		config.maxReqs = int64(maxReqs)
	})
}

// WithWorkerCommand sets the command used to spawn worker processes. It
// defaults to re-executing the current binary; see the executor package for
// the expected child behavior.
func WithWorkerCommand(command string, args ...string) Option {
	return OptionFunc(func(config *config) {
		config.workerCommand = command
		config.workerArgs = args
	})
}

// WithIncludePaths exports the given directories to worker processes.
func WithIncludePaths(paths ...string) Option {
	return OptionFunc(func(config *config) {
		config.includePaths = paths
	})
}

// WithCompression sets the frame compression used on the worker pipes. The
// name is exported to workers so both pipe ends agree.
func WithCompression(name string) Option {
	return OptionFunc(func(config *config) {
		config.compression = name
	})
}

// WithLogger sets the pool logger.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(config *config) {
		config.logger = logger
	})
}

// WithSpawnRetry tunes how spawning a worker is retried: at most retries
// attempts, backing off between interval and timeout.
func WithSpawnRetry(retries int, interval, timeout time.Duration) Option {
	return OptionFunc(func(config *config) {
		config.spawnRetries = retries
		config.spawnInterval = interval
		config.spawnTimeout = timeout
	})
}
