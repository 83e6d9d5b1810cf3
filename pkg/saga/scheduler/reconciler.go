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

// Package scheduler runs the periodic saga maintenance jobs: reconciliation
// of stalled sagas and purging of aged completed ones. Both jobs take a
// cluster lock before running so only one replica performs each cycle.
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

// ReconcilerConfig tunes the stalled-saga reconciliation job.
type ReconcilerConfig struct {
	// Interval is the tick period. Defaults to 2 minutes.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// StaleAfter is the minimum quiet time before an in-flight saga is
	// considered stalled. Defaults to 5 minutes; it must comfortably exceed
	// the slowest expected participant response so healthy sagas are never
	// replayed mid-step.
	StaleAfter time.Duration `yaml:"stale_after" json:"stale_after"`

	// LockKey names the cluster lock. Defaults to "sagaflow:reconciler".
	LockKey string `yaml:"lock_key" json:"lock_key"`

	// LockTTL is the lock lease. Defaults to the interval.
	LockTTL time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// SetDefaults fills unset fields.
func (c *ReconcilerConfig) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 5 * time.Minute
	}
	if c.LockKey == "" {
		c.LockKey = "sagaflow:reconciler"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.Interval
	}
}

// Reconciler periodically scans for in-flight sagas that have gone quiet and
// re-drives each from its durable event log through the owning engine. A lost
// message, crashed replica, or dropped persistence retry is healed here; the
// idempotency checks make a replay racing a live delivery harmless.
type Reconciler struct {
	cfg     ReconcilerConfig
	service *saga.Service
	engines *saga.OrchestratorRegistry
	lock    lock.Lock
	metrics saga.MetricsCollector
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciler builds a reconciler. A nil metrics collector falls back to
// the no-op collector.
func NewReconciler(cfg ReconcilerConfig, service *saga.Service, engines *saga.OrchestratorRegistry, l lock.Lock, metrics saga.MetricsCollector) *Reconciler {
	cfg.SetDefaults()
	if metrics == nil {
		metrics = saga.NoopMetricsCollector{}
	}
	return &Reconciler{
		cfg:     cfg,
		service: service,
		engines: engines,
		lock:    l,
		metrics: metrics,
		log:     logger.Named("saga.reconciler"),
	}
}

// Start launches the periodic loop. Calling Start twice is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
	r.log.Info("reconciler started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Duration("staleAfter", r.cfg.StaleAfter))
}

// Stop cancels the loop and waits for an in-progress cycle to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.log.Info("reconciler stopped")
}

// RunOnce performs one reconciliation cycle under the cluster lock. Exported
// so operators and tests can trigger a cycle on demand. Returns the number of
// sagas replayed.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	acquired, err := r.lock.Acquire(ctx, r.cfg.LockKey, r.cfg.LockTTL)
	if err != nil {
		r.log.Error("reconciler lock acquisition failed", zap.Error(err))
		return 0
	}
	if !acquired {
		r.log.Debug("reconciler lock held elsewhere, skipping cycle")
		return 0
	}
	defer func() {
		if err := r.lock.Release(ctx, r.cfg.LockKey); err != nil {
			r.log.Warn("reconciler lock release failed", zap.Error(err))
		}
	}()

	stale, err := r.service.FindStale(ctx, time.Now().Add(-r.cfg.StaleAfter))
	if err != nil {
		r.log.Error("stale saga scan failed", zap.Error(err))
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	replayed := 0
	for _, sg := range stale {
		engine, ok := r.engines.Get(sg.SagaName)
		if !ok {
			// Row written by a newer deployment, or the saga type was
			// retired with rows still in flight.
			r.log.Error("no engine registered for stalled saga",
				zap.String("sagaId", sg.ID),
				zap.String("sagaName", sg.SagaName))
			continue
		}
		if err := engine.Replay(ctx, sg); err != nil {
			r.log.Error("saga replay failed",
				zap.String("sagaId", sg.ID),
				zap.String("sagaName", sg.SagaName),
				zap.Error(err))
			continue
		}
		r.metrics.RecordReplay(sg.SagaName)
		replayed++
	}

	r.log.Info("reconciliation cycle complete",
		zap.Int("stale", len(stale)),
		zap.Int("replayed", replayed))
	return replayed
}
