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

package future

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_Await(t *testing.T) {
	t.Run("With Success", func(t *testing.T) {
		ctx := context.TODO()
		f := New[string](ctx, func(context.Context) (string, error) {
			time.Sleep(100 * time.Millisecond)
			return "done", nil
		})

		result := f.Await(time.Second)
		require.NotNil(t, result)
		require.NoError(t, result.Failure())
		assert.Equal(t, "done", result.Success())
	})
	t.Run("With Failure", func(t *testing.T) {
		ctx := context.TODO()
		f := New[string](ctx, func(context.Context) (string, error) {
			return "", fmt.Errorf("something went wrong")
		})

		result := f.Await(time.Second)
		require.NotNil(t, result)
		require.Error(t, result.Failure())
		assert.Equal(t, "something went wrong", result.Failure().Error())
	})
	t.Run("With Timeout", func(t *testing.T) {
		ctx := context.TODO()
		f := New[string](ctx, func(context.Context) (string, error) {
			time.Sleep(time.Second)
			return "done", nil
		})

		result := f.Await(50 * time.Millisecond)
		require.NotNil(t, result)
		assert.ErrorIs(t, result.Failure(), ErrFutureTimeout)
	})
}

func TestFuture_AwaitUninterruptible(t *testing.T) {
	t.Run("With Success", func(t *testing.T) {
		ctx := context.TODO()
		f := New[int](ctx, func(context.Context) (int, error) {
			return 42, nil
		})

		result := f.AwaitUninterruptible()
		require.NoError(t, result.Failure())
		assert.Equal(t, 42, result.Success())
	})
	t.Run("With Panic", func(t *testing.T) {
		ctx := context.TODO()
		f := New[int](ctx, func(context.Context) (int, error) {
			panic("boom")
		})

		result := f.AwaitUninterruptible()
		require.Error(t, result.Failure())
		assert.Contains(t, result.Failure().Error(), "boom")
	})
}

func TestFuture_Cancel(t *testing.T) {
	ctx := context.TODO()
	started := make(chan struct{})
	f := New[string](ctx, func(fctx context.Context) (string, error) {
		close(started)
		<-fctx.Done()
		return "", fctx.Err()
	})

	<-started
	f.Cancel()
	result := f.AwaitUninterruptible()
	require.Error(t, result.Failure())
	assert.ErrorIs(t, result.Failure(), context.Canceled)
}
