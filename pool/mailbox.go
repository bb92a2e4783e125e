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
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/internal/codec"
	"github.com/tochemey/procpool/internal/syncmap"
	"github.com/tochemey/procpool/log"
)

// delivery is what the demultiplexer hands to a pending slot: either the raw
// response payload or the terminal error that voided the request.
type delivery struct {
	payload []byte
	err     error
}

// slot is the single-shot rendezvous for one outstanding request identifier.
// It is fulfilled exactly once by the demultiplexer and drained exactly once
// by recv. An abandoned slot marks a caller that gave up; the response is
// dropped on arrival instead of being treated as a protocol violation.
type slot struct {
	ch        chan *delivery
	abandoned *atomic.Bool
}

func newSlot() *slot {
	return &slot{
		ch:        make(chan *delivery, 1),
		abandoned: atomic.NewBool(false),
	}
}

// mailbox is a full-duplex, identifier-multiplexed message channel over one
// readable and one writable stream. Many requests can be in flight at once;
// a single background demultiplexer routes every inbound frame to the slot
// of its identifier.
type mailbox struct {
	input  io.ReadCloser
	output io.WriteCloser
	codec  *codec.Codec
	logger log.Logger

	// serializes concurrent senders on the output stream
	writeLock sync.Mutex
	counter   *atomic.Uint64
	slots     *syncmap.SyncMap[uint64, *slot]

	waitersLock sync.Mutex
	waiters     []chan struct{}

	closed    *atomic.Bool
	closeOnce sync.Once
	cause     error
	// done is closed when the demultiplexer has exited; cause is set before
	done chan struct{}
}

// newMailbox creates a mailbox over the given stream pair and starts its
// demultiplexer. The mailbox owns both streams.
func newMailbox(input io.ReadCloser, output io.WriteCloser, frameCodec *codec.Codec, logger log.Logger) *mailbox {
	m := &mailbox{
		input:   input,
		output:  output,
		codec:   frameCodec,
		logger:  logger,
		counter: atomic.NewUint64(0),
		slots:   syncmap.New[uint64, *slot](),
		closed:  atomic.NewBool(false),
		done:    make(chan struct{}),
	}
	go m.demultiplex()
	return m
}

// send assigns a fresh identifier, creates its inbox slot and writes one
// framed message to the output stream. It only blocks on stream
// backpressure.
func (m *mailbox) send(payload []byte) (uint64, error) {
	if m.closed.Load() {
		return 0, gerrors.ErrMailboxClosed
	}

	id := m.counter.Inc()
	if !m.slots.SetIfAbsent(id, newSlot()) {
		return 0, gerrors.ErrSlotTaken
	}

	frame, err := m.codec.EncodeFrame(id, payload)
	if err != nil {
		m.slots.Delete(id)
		return 0, err
	}

	m.writeLock.Lock()
	_, err = m.output.Write(frame)
	m.writeLock.Unlock()
	if err != nil {
		m.slots.Delete(id)
		return 0, fmt.Errorf("%w: %v", gerrors.ErrWorkerDied, err)
	}
	return id, nil
}

// recv blocks until the slot of the given identifier is fulfilled, then
// removes the slot and returns the payload. When the caller gives up the
// slot is abandoned and a late response is silently dropped.
func (m *mailbox) recv(ctx context.Context, id uint64) ([]byte, error) {
	pending, ok := m.slots.Get(id)
	if !ok {
		select {
		case <-m.done:
			return nil, m.cause
		default:
			return nil, fmt.Errorf("%w: no slot for id %d", gerrors.ErrProtocol, id)
		}
	}

	select {
	case result := <-pending.ch:
		m.slots.Delete(id)
		return result.payload, result.err
	case <-ctx.Done():
		m.abandon(id)
		return nil, ctx.Err()
	}
}

// readable blocks until some frame has arrived, without identifying which
// identifier it belongs to. The demultiplexer wakes every parked waiter
// before it decodes the inbound frame, so a scheduler can hand the worker
// back to the idle set concurrently with the payload being read.
func (m *mailbox) readable(ctx context.Context) error {
	waiter := make(chan struct{}, 1)
	m.waitersLock.Lock()
	m.waiters = append(m.waiters, waiter)
	m.waitersLock.Unlock()
	defer m.removeWaiter(waiter)

	// a response that landed before this waiter parked still counts as
	// readable
	if m.hasBufferedDelivery() {
		return nil
	}

	select {
	case <-waiter:
		return nil
	case <-m.done:
		return m.cause
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandon marks the slot of the given identifier so its response is dropped
// on arrival. A response that already arrived is drained.
func (m *mailbox) abandon(id uint64) {
	pending, ok := m.slots.Get(id)
	if !ok {
		return
	}
	pending.abandoned.Store(true)
	select {
	case <-pending.ch:
		m.slots.Delete(id)
	default:
	}
}

// pendingCount returns the number of outstanding request slots.
func (m *mailbox) pendingCount() int {
	return m.slots.Len()
}

// close closes both streams. The demultiplexer exits on the resulting read
// error and fulfils every still-pending slot with the given cause.
func (m *mailbox) close(cause error) {
	m.seal(cause)
	<-m.done
}

// closeWrite closes only the output stream. The peer observes EOF on its
// input once it has drained the pipe; responses already inbound are still
// demultiplexed.
func (m *mailbox) closeWrite() {
	m.closed.Store(true)
	_ = m.output.Close()
}

// wait blocks until the demultiplexer has terminated. Unlike close it does
// not cut the input stream short: frames still buffered in the pipe are
// drained up to EOF.
func (m *mailbox) wait() {
	<-m.done
}

// isClosed reports whether the mailbox no longer accepts sends.
func (m *mailbox) isClosed() bool {
	return m.closed.Load()
}

// seal records the terminal cause and closes both streams, exactly once.
func (m *mailbox) seal(cause error) {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.cause = cause
		_ = m.output.Close()
		_ = m.input.Close()
	})
}

// demultiplex is the sole reader of the input stream. It runs for the life
// of the mailbox: read one frame, wake the readable waiters, decode, deliver
// to the slot of the frame identifier.
func (m *mailbox) demultiplex() {
	reader := bufio.NewReader(m.input)
	for {
		line, err := reader.ReadBytes(codec.Sentinel)
		if err != nil {
			m.finish(fmt.Errorf("%w: %v", gerrors.ErrWorkerDied, err))
			return
		}

		// a frame is inbound: let the schedulers observe readiness before the
		// payload is decoded
		m.notifyWaiters()

		id, payload, err := m.codec.DecodeFrame(line)
		if err != nil {
			m.logger.Errorf("mailbox codec failure: %v", err)
			m.finish(err)
			return
		}

		pending, ok := m.slots.Get(id)
		if !ok {
			m.finish(fmt.Errorf("%w: frame for unknown id %d", gerrors.ErrProtocol, id))
			return
		}
		if pending.abandoned.Load() {
			m.slots.Delete(id)
			continue
		}
		select {
		case pending.ch <- &delivery{payload: payload}:
			// an abandon racing this delivery may have missed it; drop the
			// response on its behalf
			if pending.abandoned.Load() {
				select {
				case <-pending.ch:
					m.slots.Delete(id)
				default:
				}
			}
		default:
			// the slot was already fulfilled; a second frame for a live id can
			// only come from a misbehaving peer
			m.finish(fmt.Errorf("%w: duplicate frame for id %d", gerrors.ErrProtocol, id))
			return
		}
	}
}

// hasBufferedDelivery reports whether any slot holds a fulfilled, undrained
// response.
func (m *mailbox) hasBufferedDelivery() bool {
	found := false
	m.slots.Range(func(_ uint64, pending *slot) {
		if len(pending.ch) > 0 {
			found = true
		}
	})
	return found
}

// finish seals the mailbox with the given cause, fails every pending slot
// and signals termination. Called only from the demultiplexer.
func (m *mailbox) finish(cause error) {
	m.seal(cause)
	// done is closed before the slots are drained so a racing recv that
	// misses its slot still observes the cause rather than a protocol error
	close(m.done)
	for _, pending := range m.slots.Reset() {
		select {
		case pending.ch <- &delivery{err: m.cause}:
		default:
		}
	}
}

// notifyWaiters signals every currently parked readable waiter.
func (m *mailbox) notifyWaiters() {
	m.waitersLock.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.waitersLock.Unlock()
	for _, waiter := range waiters {
		waiter <- struct{}{}
	}
}

func (m *mailbox) removeWaiter(waiter chan struct{}) {
	m.waitersLock.Lock()
	for i, candidate := range m.waiters {
		if candidate == waiter {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	m.waitersLock.Unlock()
}
