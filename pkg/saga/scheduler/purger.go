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

package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/innovationmech/sagaflow/pkg/logger"
	"github.com/innovationmech/sagaflow/pkg/saga"
	"github.com/innovationmech/sagaflow/pkg/saga/lock"
)

// PurgerConfig tunes the aged-saga purge job.
type PurgerConfig struct {
	// Interval is the tick period. Defaults to 24 hours.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// RetentionDays is how long saga rows are kept after creation.
	// Defaults to 7.
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// LockKey names the cluster lock. Defaults to "sagaflow:purger".
	LockKey string `yaml:"lock_key" json:"lock_key"`

	// LockTTL is the lock lease. Defaults to 10 minutes.
	LockTTL time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// SetDefaults fills unset fields.
func (c *PurgerConfig) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 7
	}
	if c.LockKey == "" {
		c.LockKey = "sagaflow:purger"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
}

// Purger periodically deletes saga rows and their event logs past the
// retention window, under a cluster lock so only one replica purges.
type Purger struct {
	cfg     PurgerConfig
	service *saga.Service
	lock    lock.Lock
	metrics saga.MetricsCollector
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPurger builds a purger. A nil metrics collector falls back to the no-op
// collector.
func NewPurger(cfg PurgerConfig, service *saga.Service, l lock.Lock, metrics saga.MetricsCollector) *Purger {
	cfg.SetDefaults()
	if metrics == nil {
		metrics = saga.NoopMetricsCollector{}
	}
	return &Purger{
		cfg:     cfg,
		service: service,
		lock:    l,
		metrics: metrics,
		log:     logger.Named("saga.purger"),
	}
}

// Start launches the periodic loop. Calling Start twice is a no-op.
func (p *Purger) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.RunOnce(ctx)
			}
		}
	}()
	p.log.Info("purger started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Int("retentionDays", p.cfg.RetentionDays))
}

// Stop cancels the loop and waits for an in-progress cycle to finish.
func (p *Purger) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.log.Info("purger stopped")
}

// RunOnce performs one purge cycle under the cluster lock. Returns the number
// of purged saga headers.
func (p *Purger) RunOnce(ctx context.Context) int64 {
	acquired, err := p.lock.Acquire(ctx, p.cfg.LockKey, p.cfg.LockTTL)
	if err != nil {
		p.log.Error("purger lock acquisition failed", zap.Error(err))
		return 0
	}
	if !acquired {
		p.log.Debug("purger lock held elsewhere, skipping cycle")
		return 0
	}
	defer func() {
		if err := p.lock.Release(ctx, p.cfg.LockKey); err != nil {
			p.log.Warn("purger lock release failed", zap.Error(err))
		}
	}()

	cutoff := time.Now().AddDate(0, 0, -p.cfg.RetentionDays)
	purged, err := p.service.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("saga purge failed", zap.Error(err))
		return 0
	}
	if purged > 0 {
		p.metrics.RecordPurgedSagas(purged)
		p.log.Info("purge cycle complete",
			zap.Int64("purged", purged),
			zap.Time("cutoff", cutoff))
	}
	return purged
}
