// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLock_AcquireIsExclusive(t *testing.T) {
	l := NewMemoryLock()
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "reconciler", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "reconciler", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key is independent.
	ok, err = l.Acquire(ctx, "purger", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLock_ReleaseAllowsReacquire(t *testing.T) {
	l := NewMemoryLock()
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "reconciler", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "reconciler"))

	ok, err = l.Acquire(ctx, "reconciler", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLock_ExpiredLeaseIsReacquirable(t *testing.T) {
	l := NewMemoryLock()
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "reconciler", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	ok, err = l.Acquire(ctx, "reconciler", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLock_HonorsContext(t *testing.T) {
	l := NewMemoryLock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Acquire(ctx, "reconciler", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, l.Release(ctx, "reconciler"), context.Canceled)
}
