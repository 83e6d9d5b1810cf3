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

package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGateway_PublishDeliversToSubscribers(t *testing.T) {
	g := NewMemoryGateway()

	var got [][]byte
	require.NoError(t, g.Subscribe("orders", func(data []byte) {
		got = append(got, data)
	}))

	require.NoError(t, g.Publish(context.Background(), "orders", []byte("a")))
	require.NoError(t, g.Publish(context.Background(), "orders", []byte("b")))

	require.Len(t, got, 2)
	assert.Equal(t, "a", string(got[0]))
	assert.Equal(t, "b", string(got[1]))
	assert.Len(t, g.Published("orders"), 2)
	assert.Empty(t, g.Published("other"))
}

func TestMemoryGateway_SubscribeRequiresHandler(t *testing.T) {
	g := NewMemoryGateway()
	assert.ErrorIs(t, g.Subscribe("orders", nil), ErrHandlerRequired)
}

func TestMemoryGateway_PublishErrSkipsDelivery(t *testing.T) {
	g := NewMemoryGateway()
	injected := errors.New("bus down")
	g.PublishErr = injected

	delivered := false
	require.NoError(t, g.Subscribe("orders", func([]byte) { delivered = true }))

	err := g.Publish(context.Background(), "orders", []byte("x"))
	assert.ErrorIs(t, err, injected)
	assert.False(t, delivered)
	assert.Empty(t, g.Published("orders"))
}

func TestMemoryGateway_ClosedRejectsOperations(t *testing.T) {
	g := NewMemoryGateway()
	require.NoError(t, g.Close())

	assert.ErrorIs(t, g.Publish(context.Background(), "t", nil), ErrGatewayClosed)
	assert.ErrorIs(t, g.Subscribe("t", func([]byte) {}), ErrGatewayClosed)
}

func TestMemoryGateway_PublishHonorsContext(t *testing.T) {
	g := NewMemoryGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, g.Publish(ctx, "t", nil), context.Canceled)
}

func TestNatsConfig_Defaults(t *testing.T) {
	cfg := &NatsConfig{}
	cfg.SetDefaults()

	assert.NotEmpty(t, cfg.URLs)
	assert.Equal(t, "sagaflow", cfg.Name)
	assert.Positive(t, cfg.ReconnectWait)
	assert.Positive(t, cfg.MaxReconnectWait)
	assert.Positive(t, cfg.AckWait)
	assert.Positive(t, cfg.PublishRetryAttempts)
	assert.Positive(t, cfg.RetryWorkers)
	assert.NoError(t, cfg.Validate())
}

func TestNatsConfig_ValidateRejectsBlankURL(t *testing.T) {
	cfg := &NatsConfig{URLs: []string{"  "}}
	assert.Error(t, cfg.Validate())
}
