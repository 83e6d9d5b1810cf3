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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/innovationmech/sagaflow/pkg/logger"
	"github.com/innovationmech/sagaflow/pkg/saga/retry"
)

// NatsConfig configures the NATS gateway.
type NatsConfig struct {
	// URLs lists the broker endpoints.
	URLs []string `yaml:"urls" json:"urls"`

	// Name identifies this connection to the broker.
	Name string `yaml:"name" json:"name"`

	// ReconnectWait is the base delay between reconnect attempts. The
	// actual delay grows with consecutive failures up to MaxReconnectWait.
	ReconnectWait time.Duration `yaml:"reconnect_wait" json:"reconnect_wait"`

	// MaxReconnectWait caps the growing reconnect delay.
	MaxReconnectWait time.Duration `yaml:"max_reconnect_wait" json:"max_reconnect_wait"`

	// AckWait bounds the flush wait after each publish.
	AckWait time.Duration `yaml:"ack_wait" json:"ack_wait"`

	// PublishRetryAttempts bounds the background retries of one failed
	// publish.
	PublishRetryAttempts int `yaml:"publish_retry_attempts" json:"publish_retry_attempts"`

	// PublishRetryDelay is the initial backoff of the background retry.
	PublishRetryDelay time.Duration `yaml:"publish_retry_delay" json:"publish_retry_delay"`

	// RetryWorkers is the size of the background publish retry pool.
	RetryWorkers int `yaml:"retry_workers" json:"retry_workers"`

	// RetryQueueSize bounds the pending retry queue; further failures are
	// dropped and left to reconciliation.
	RetryQueueSize int `yaml:"retry_queue_size" json:"retry_queue_size"`
}

// SetDefaults fills unset fields.
func (c *NatsConfig) SetDefaults() {
	if len(c.URLs) == 0 {
		c.URLs = []string{nats.DefaultURL}
	}
	if c.Name == "" {
		c.Name = "sagaflow"
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.MaxReconnectWait <= 0 {
		c.MaxReconnectWait = 30 * time.Second
	}
	if c.AckWait <= 0 {
		c.AckWait = 5 * time.Second
	}
	if c.PublishRetryAttempts <= 0 {
		c.PublishRetryAttempts = 5
	}
	if c.PublishRetryDelay <= 0 {
		c.PublishRetryDelay = 200 * time.Millisecond
	}
	if c.RetryWorkers <= 0 {
		c.RetryWorkers = 2
	}
	if c.RetryQueueSize <= 0 {
		c.RetryQueueSize = 256
	}
}

// Validate checks the configuration.
func (c *NatsConfig) Validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("nats urls are required")
	}
	for _, u := range c.URLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("nats url must not be blank")
		}
	}
	return nil
}

type pendingPublish struct {
	topic string
	data  []byte
}

// NatsGateway implements Gateway on a core NATS connection. The connection
// reconnects indefinitely with a growing, capped delay, independent of any
// individual saga. A failed publish is handed to a small background worker
// pool for retry; the synchronous caller still sees the original error and
// relies on reconciliation if the retries are exhausted.
type NatsGateway struct {
	conn    *nats.Conn
	cfg     *NatsConfig
	retryCh chan pendingPublish
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	subs    []*nats.Subscription
	closed  bool
	log     *zap.Logger
}

// NewNatsGateway connects to the broker and starts the publish retry pool.
func NewNatsGateway(cfg *NatsConfig) (*NatsGateway, error) {
	if cfg == nil {
		cfg = &NatsConfig{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid nats config: %w", err)
	}

	log := logger.Named("saga.messaging.nats")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			delay := cfg.ReconnectWait * time.Duration(attempts)
			if delay > cfg.MaxReconnectWait {
				delay = cfg.MaxReconnectWait
			}
			return delay
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats connection lost", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats connection restored", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	g := &NatsGateway{
		conn:    conn,
		cfg:     cfg,
		retryCh: make(chan pendingPublish, cfg.RetryQueueSize),
		done:    make(chan struct{}),
		log:     log,
	}
	for i := 0; i < cfg.RetryWorkers; i++ {
		g.wg.Add(1)
		go g.retryWorker()
	}
	return g, nil
}

// Publish sends the message and waits up to AckWait for the broker flush. On
// failure the publish is queued for background retry and the error returned.
func (g *NatsGateway) Publish(ctx context.Context, topic string, data []byte) error {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return ErrGatewayClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := g.attemptPublish(topic, data); err != nil {
		g.enqueueRetry(topic, data)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (g *NatsGateway) attemptPublish(topic string, data []byte) error {
	if err := g.conn.Publish(topic, data); err != nil {
		return err
	}
	return g.conn.FlushTimeout(g.cfg.AckWait)
}

func (g *NatsGateway) enqueueRetry(topic string, data []byte) {
	select {
	case g.retryCh <- pendingPublish{topic: topic, data: data}:
	default:
		g.log.Error("publish retry queue full, dropping message for reconciliation",
			zap.String("topic", topic))
	}
}

func (g *NatsGateway) retryWorker() {
	defer g.wg.Done()
	policy := retry.NewExponentialPolicy(g.cfg.PublishRetryAttempts, g.cfg.PublishRetryDelay, g.cfg.MaxReconnectWait)
	for {
		select {
		case <-g.done:
			return
		case p := <-g.retryCh:
			err := policy.Do(context.Background(), func() error {
				return g.attemptPublish(p.topic, p.data)
			})
			if err != nil {
				g.log.Error("background publish retries exhausted",
					zap.String("topic", p.topic), zap.Error(err))
			}
		}
	}
}

// Subscribe attaches the handler to the topic.
func (g *NatsGateway) Subscribe(topic string, handler func(data []byte)) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGatewayClosed
	}

	sub, err := g.conn.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	g.subs = append(g.subs, sub)
	return nil
}

// Close drains subscriptions, stops the retry pool, and closes the
// connection.
func (g *NatsGateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	subs := g.subs
	g.mu.Unlock()

	close(g.done)
	g.wg.Wait()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			g.log.Warn("unsubscribe failed", zap.Error(err))
		}
	}
	g.conn.Close()
	return nil
}
