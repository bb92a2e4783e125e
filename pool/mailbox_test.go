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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/procpool/errors"
	"github.com/tochemey/procpool/internal/codec"
	"github.com/tochemey/procpool/log"
)

// peer is the scripted far end of a mailbox: the parent-to-child pipe is
// read through input, responses are written through output.
type peer struct {
	input  *os.File
	reader *bufio.Reader
	output *os.File
	codec  *codec.Codec
}

func newTestMailbox(t *testing.T) (*mailbox, *peer) {
	t.Helper()
	parentInput, childOutput, err := os.Pipe()
	require.NoError(t, err)
	childInput, parentOutput, err := os.Pipe()
	require.NoError(t, err)

	frameCodec := codec.New("")
	m := newMailbox(parentInput, parentOutput, frameCodec, log.DiscardLogger)
	return m, &peer{
		input:  childInput,
		reader: bufio.NewReader(childInput),
		output: childOutput,
		codec:  frameCodec,
	}
}

// read decodes the next inbound frame.
func (p *peer) read(t *testing.T) (uint64, []byte) {
	t.Helper()
	line, err := p.reader.ReadBytes(codec.Sentinel)
	require.NoError(t, err)
	id, payload, err := p.codec.DecodeFrame(line)
	require.NoError(t, err)
	return id, payload
}

// write frames a response for the given id.
func (p *peer) write(t *testing.T, id uint64, payload []byte) {
	t.Helper()
	frame, err := p.codec.EncodeFrame(id, payload)
	require.NoError(t, err)
	_, err = p.output.Write(frame)
	require.NoError(t, err)
}

func (p *peer) close() {
	_ = p.input.Close()
	_ = p.output.Close()
}

func TestMailboxRoundTrip(t *testing.T) {
	t.Run("With single request", func(t *testing.T) {
		ctx := context.TODO()
		m, remote := newTestMailbox(t)
		defer remote.close()
		defer m.close(gerrors.ErrMailboxClosed)

		id, err := m.send([]byte("ping"))
		require.NoError(t, err)

		inboundID, payload := remote.read(t)
		assert.Equal(t, id, inboundID)
		assert.Equal(t, []byte("ping"), payload)
		remote.write(t, id, []byte("pong"))

		response, err := m.recv(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("pong"), response)
		assert.Zero(t, m.pendingCount())
	})
	t.Run("With interleaved responses", func(t *testing.T) {
		ctx := context.TODO()
		m, remote := newTestMailbox(t)
		defer remote.close()
		defer m.close(gerrors.ErrMailboxClosed)

		first, err := m.send([]byte("first"))
		require.NoError(t, err)
		second, err := m.send([]byte("second"))
		require.NoError(t, err)

		remote.read(t)
		remote.read(t)
		// the peer answers out of order; each slot still gets its own frame
		remote.write(t, second, []byte("second response"))
		remote.write(t, first, []byte("first response"))

		response, err := m.recv(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, []byte("first response"), response)

		response, err = m.recv(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, []byte("second response"), response)
	})
	t.Run("With monotonic ids", func(t *testing.T) {
		m, remote := newTestMailbox(t)
		defer remote.close()
		defer m.close(gerrors.ErrMailboxClosed)

		first, err := m.send([]byte("a"))
		require.NoError(t, err)
		second, err := m.send([]byte("b"))
		require.NoError(t, err)
		assert.Greater(t, second, first)
	})
}

func TestMailboxReadable(t *testing.T) {
	t.Run("With frame inbound", func(t *testing.T) {
		ctx := context.TODO()
		m, remote := newTestMailbox(t)
		defer remote.close()
		defer m.close(gerrors.ErrMailboxClosed)

		id, err := m.send([]byte("ping"))
		require.NoError(t, err)

		waited := make(chan error, 1)
		go func() {
			waited <- m.readable(ctx)
		}()

		remote.read(t)
		remote.write(t, id, []byte("pong"))

		select {
		case err := <-waited:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("readable did not fire")
		}

		response, err := m.recv(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("pong"), response)
	})
	t.Run("With response already buffered", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.TODO(), time.Second)
		defer cancel()
		m, remote := newTestMailbox(t)
		defer remote.close()
		defer m.close(gerrors.ErrMailboxClosed)

		id, err := m.send([]byte("ping"))
		require.NoError(t, err)
		remote.read(t)
		remote.write(t, id, []byte("pong"))

		// wait for the demultiplexer to fulfil the slot, then park late
		require.Eventually(t, func() bool {
			return m.hasBufferedDelivery()
		}, time.Second, 10*time.Millisecond)
		require.NoError(t, m.readable(ctx))
	})
	t.Run("With context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.TODO())
		m, remote := newTestMailbox(t)
		defer remote.close()
		defer m.close(gerrors.ErrMailboxClosed)

		cancel()
		assert.ErrorIs(t, m.readable(ctx), context.Canceled)
	})
}

func TestMailboxClose(t *testing.T) {
	t.Run("With pending request", func(t *testing.T) {
		ctx := context.TODO()
		m, remote := newTestMailbox(t)
		defer remote.close()

		id, err := m.send([]byte("ping"))
		require.NoError(t, err)

		received := make(chan error, 1)
		go func() {
			_, err := m.recv(ctx, id)
			received <- err
		}()

		m.close(gerrors.ErrPoolClosed)
		assert.ErrorIs(t, <-received, gerrors.ErrPoolClosed)
	})
	t.Run("With send after close", func(t *testing.T) {
		m, remote := newTestMailbox(t)
		defer remote.close()

		m.close(gerrors.ErrMailboxClosed)
		_, err := m.send([]byte("ping"))
		assert.ErrorIs(t, err, gerrors.ErrMailboxClosed)
	})
	t.Run("With peer gone", func(t *testing.T) {
		ctx := context.TODO()
		m, remote := newTestMailbox(t)

		id, err := m.send([]byte("ping"))
		require.NoError(t, err)

		remote.close()
		_, err = m.recv(ctx, id)
		assert.ErrorIs(t, err, gerrors.ErrWorkerDied)
		m.close(gerrors.ErrMailboxClosed)
	})
}

func TestMailboxProtocolViolation(t *testing.T) {
	t.Run("With unknown id", func(t *testing.T) {
		ctx := context.TODO()
		m, remote := newTestMailbox(t)
		defer remote.close()

		id, err := m.send([]byte("ping"))
		require.NoError(t, err)
		remote.read(t)

		// a frame for an id that was never assigned is fatal
		remote.write(t, id+100, []byte("stray"))

		_, err = m.recv(ctx, id)
		assert.ErrorIs(t, err, gerrors.ErrProtocol)
		m.close(gerrors.ErrMailboxClosed)
	})
	t.Run("With abandoned slot", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.TODO())
		m, remote := newTestMailbox(t)
		defer remote.close()
		defer m.close(gerrors.ErrMailboxClosed)

		id, err := m.send([]byte("ping"))
		require.NoError(t, err)
		remote.read(t)

		cancel()
		_, err = m.recv(ctx, id)
		assert.ErrorIs(t, err, context.Canceled)

		// the late response is dropped, not a protocol violation
		remote.write(t, id, []byte("late"))

		// a subsequent request keeps working
		ctx = context.TODO()
		next, err := m.send([]byte("again"))
		require.NoError(t, err)
		remote.read(t)
		remote.write(t, next, []byte("fine"))

		response, err := m.recv(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, []byte("fine"), response)
	})
}
