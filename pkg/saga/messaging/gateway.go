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

// Package messaging defines the event-bus gateway contract used by the saga
// engines and provides the NATS implementation plus an in-process bus for
// tests.
package messaging

import (
	"context"
	"errors"
)

var (
	// ErrGatewayClosed indicates the gateway has been shut down.
	ErrGatewayClosed = errors.New("messaging gateway is closed")

	// ErrHandlerRequired indicates Subscribe was called without a handler.
	ErrHandlerRequired = errors.New("subscription handler is required")
)

// Gateway is the publish/subscribe contract against the event bus. Delivery
// is at-least-once; subscribers must tolerate duplicates. Publish waits for a
// bounded broker acknowledgement and transparently schedules a background
// retry on failure, so a transport hiccup never blocks the calling saga.
type Gateway interface {
	// Publish sends raw bytes to a topic.
	Publish(ctx context.Context, topic string, data []byte) error

	// Subscribe delivers every message on the topic to the handler. One
	// handler per orchestrator inbound topic.
	Subscribe(topic string, handler func(data []byte)) error

	// Close drains subscriptions and releases the connection.
	Close() error
}
