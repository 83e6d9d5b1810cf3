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
	"sync"
)

// MemoryGateway is an in-process Gateway for tests and single-binary demos.
// Publish delivers synchronously to every subscriber of the topic and records
// the message so tests can assert on the publish history.
type MemoryGateway struct {
	mu        sync.Mutex
	handlers  map[string][]func(data []byte)
	published map[string][][]byte
	// PublishErr, when set, is returned by Publish without delivering.
	PublishErr error
	closed     bool
}

// NewMemoryGateway builds an empty in-process bus.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		handlers:  make(map[string][]func(data []byte)),
		published: make(map[string][][]byte),
	}
}

// Publish records the message and delivers it to subscribers on the calling
// goroutine.
func (g *MemoryGateway) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGatewayClosed
	}
	if g.PublishErr != nil {
		err := g.PublishErr
		g.mu.Unlock()
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	g.published[topic] = append(g.published[topic], cp)
	handlers := append([]func(data []byte){}, g.handlers[topic]...)
	g.mu.Unlock()

	for _, h := range handlers {
		h(cp)
	}
	return nil
}

// Subscribe registers the handler for the topic.
func (g *MemoryGateway) Subscribe(topic string, handler func(data []byte)) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGatewayClosed
	}
	g.handlers[topic] = append(g.handlers[topic], handler)
	return nil
}

// Close marks the bus closed; further publishes and subscriptions fail.
func (g *MemoryGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// Published returns the messages published to the topic, in order.
func (g *MemoryGateway) Published(topic string) [][]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]byte{}, g.published[topic]...)
}

// Reset clears the publish history, keeping subscriptions.
func (g *MemoryGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = make(map[string][][]byte)
}
