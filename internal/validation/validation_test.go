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

package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain(t *testing.T) {
	t.Run("With all validators passing", func(t *testing.T) {
		err := New(AllErrors()).
			AddAssertion(true, "first").
			AddAssertion(true, "second").
			Validate()
		assert.NoError(t, err)
	})
	t.Run("With all errors accumulated", func(t *testing.T) {
		err := New(AllErrors()).
			AddAssertion(false, "first violation").
			AddAssertion(false, "second violation").
			Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "first violation")
		assert.Contains(t, err.Error(), "second violation")
	})
	t.Run("With fail fast", func(t *testing.T) {
		err := New(FailFast()).
			AddAssertion(false, "first violation").
			AddAssertion(false, "second violation").
			Validate()
		require.Error(t, err)
		assert.Equal(t, "first violation", err.Error())
	})
	t.Run("With condition validator", func(t *testing.T) {
		sentinel := errors.New("sentinel")
		err := New(AllErrors()).
			AddValidator(NewConditionValidator(false, sentinel)).
			Validate()
		assert.ErrorIs(t, err, sentinel)
	})
}
