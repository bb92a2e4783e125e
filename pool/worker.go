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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/executor"
	"github.com/tochemey/procpool/internal/codec"
	"github.com/tochemey/procpool/log"
)

// reapTimeout bounds how long a worker is given to exit after its stdin is
// closed before it is killed.
const reapTimeout = 10 * time.Second

// worker wraps one child process and its mailbox. It is a resource managed
// by the pool: it does not schedule anything itself.
type worker struct {
	id      string
	cmd     *exec.Cmd
	mailbox *mailbox
	count   *atomic.Int64
	maxReqs int64
	logger  log.Logger

	exited   *atomic.Bool
	waitDone chan struct{}
}

// newWorker spawns one child process and wires its mailbox. The pipes are
// created explicitly so their parent ends stay owned by the mailbox rather
// than being torn down by cmd.Wait while frames are still inbound.
func newWorker(config *config) (*worker, error) {
	stdinReader, stdinWriter, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		_ = stdinReader.Close()
		_ = stdinWriter.Close()
		return nil, err
	}

	cmd := exec.Command(config.workerCommand, config.workerArgs...)
	cmd.Stdin = stdinReader
	cmd.Stdout = stdoutWriter
	cmd.Stderr = config.logger.StdLogger().Writer()
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=1", executor.EnvWorker),
		fmt.Sprintf("%s=%s", executor.EnvPath, strings.Join(config.includePaths, string(filepath.ListSeparator))),
		fmt.Sprintf("%s=%s", executor.EnvCompression, config.compression),
	)

	if err := cmd.Start(); err != nil {
		_ = stdinReader.Close()
		_ = stdinWriter.Close()
		_ = stdoutReader.Close()
		_ = stdoutWriter.Close()
		return nil, err
	}

	// the child inherited its ends of the pipes
	_ = stdinReader.Close()
	_ = stdoutWriter.Close()

	w := &worker{
		id:       uuid.NewString(),
		cmd:      cmd,
		mailbox:  newMailbox(stdoutReader, stdinWriter, codec.New(config.compression), config.logger),
		count:    atomic.NewInt64(0),
		maxReqs:  config.maxReqs,
		logger:   config.logger,
		exited:   atomic.NewBool(false),
		waitDone: make(chan struct{}),
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			w.logger.Debugf("worker=(%s) pid=(%d) exited: %v", w.id, cmd.Process.Pid, err)
		}
		w.exited.Store(true)
		close(w.waitDone)
	}()

	w.logger.Infof("worker=(%s) pid=(%d) spawned", w.id, cmd.Process.Pid)
	return w, nil
}

// send frames one task request and counts it against the worker's request
// budget.
func (w *worker) send(payload []byte) (uint64, error) {
	id, err := w.mailbox.send(payload)
	if err != nil {
		return 0, err
	}
	w.count.Inc()
	return id, nil
}

// recv returns the decoded task result for the given request identifier.
func (w *worker) recv(ctx context.Context, id uint64) (any, error) {
	payload, err := w.mailbox.recv(ctx, id)
	if err != nil {
		return nil, err
	}

	response := new(codec.Response)
	if err := codec.Unmarshal(payload, response); err != nil {
		return nil, err
	}
	if response.Status == codec.StatusFailed {
		return nil, gerrors.NewTaskError(response.Diagnostic)
	}
	return response.Result, nil
}

// readable blocks until some response frame is inbound on the mailbox.
func (w *worker) readable(ctx context.Context) error {
	return w.mailbox.readable(ctx)
}

// abandon drops the pending slot of the given request identifier.
func (w *worker) abandon(id uint64) {
	w.mailbox.abandon(id)
}

// alive reports whether the worker can still be handed out: the child runs,
// the mailbox is open and the request budget is not exhausted.
func (w *worker) alive() bool {
	if w.exited.Load() || w.mailbox.isClosed() {
		return false
	}
	return w.maxReqs == 0 || w.count.Load() < w.maxReqs
}

// retire removes the worker from service without cutting off responses that
// are still inbound: the child's stdin is closed so it drains its queue,
// answers, and exits on EOF. Runs asynchronously; the permit this worker was
// held under can be re-issued immediately.
func (w *worker) retire() {
	go func() {
		w.mailbox.closeWrite()
		w.reap()
		// the child exited, so its end of the output pipe is closed; let the
		// demultiplexer drain whatever is still buffered up to EOF
		w.mailbox.wait()
		w.logger.Infof("worker=(%s) retired after %d request(s)", w.id, w.count.Load())
	}()
}

// shutdown terminates the worker and fails every pending request with the
// given cause. It blocks until the child is reaped.
func (w *worker) shutdown(cause error) {
	w.mailbox.close(cause)
	w.reap()
	w.logger.Infof("worker=(%s) shut down", w.id)
}

// reap waits for the child to exit, killing it when it overstays.
func (w *worker) reap() {
	select {
	case <-w.waitDone:
	case <-time.After(reapTimeout):
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
		<-w.waitDone
	}
}
