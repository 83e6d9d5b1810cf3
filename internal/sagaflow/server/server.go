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

// Package server wires the sagaflow service: durable store, event-bus
// gateway, saga engines, maintenance schedulers, and the admin HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/innovationmech/sagaflow/internal/sagaflow/config"
	"github.com/innovationmech/sagaflow/internal/sagaflow/sagas"
	"github.com/innovationmech/sagaflow/pkg/logger"
	"github.com/innovationmech/sagaflow/pkg/saga"
	"github.com/innovationmech/sagaflow/pkg/saga/lock"
	"github.com/innovationmech/sagaflow/pkg/saga/messaging"
	"github.com/innovationmech/sagaflow/pkg/saga/scheduler"
	"github.com/innovationmech/sagaflow/pkg/saga/storage"
)

// shutdownTimeout bounds the graceful drain of the HTTP listener.
const shutdownTimeout = 10 * time.Second

// Server is the composed sagaflow service.
type Server struct {
	cfg     *config.Config
	store   saga.Store
	service *saga.Service
	gateway messaging.Gateway
	redis   *redis.Client
	engines *saga.OrchestratorRegistry

	pen     *sagas.PenRequestSaga
	profile *sagas.ProfileRequestSaga

	reconciler *scheduler.Reconciler
	purger     *scheduler.Purger

	httpSrv *http.Server
	log     *zap.Logger
}

// NewServer builds the full production wiring from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logger.Named("server")

	store, err := storage.NewGormStore(cfg.DSN())
	if err != nil {
		return nil, err
	}
	service := saga.NewService(store)

	gateway, err := messaging.NewNatsGateway(&messaging.NatsConfig{URLs: cfg.Nats.URLs})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := saga.NewPrometheusMetricsCollector(registry)

	srv := &Server{
		cfg:     cfg,
		store:   store,
		service: service,
		gateway: gateway,
		redis:   redisClient,
		engines: saga.NewOrchestratorRegistry(),
		log:     log,
	}

	srv.pen, err = sagas.NewPenRequestSaga(service, gateway, metrics)
	if err != nil {
		return nil, err
	}
	srv.profile, err = sagas.NewProfileRequestSaga(service, gateway, metrics)
	if err != nil {
		return nil, err
	}
	if err := srv.engines.Register(srv.pen.Engine()); err != nil {
		return nil, err
	}
	if err := srv.engines.Register(srv.profile.Engine()); err != nil {
		return nil, err
	}

	clusterLock := lock.NewRedisLock(redisClient)
	srv.reconciler = scheduler.NewReconciler(scheduler.ReconcilerConfig{
		Interval:   cfg.Reconciler.Interval,
		StaleAfter: cfg.Reconciler.StaleAfter,
	}, service, srv.engines, clusterLock, metrics)
	srv.purger = scheduler.NewPurger(scheduler.PurgerConfig{
		Interval:      cfg.Purger.Interval,
		RetentionDays: cfg.Purger.RetentionDays,
	}, service, clusterLock, metrics)

	srv.httpSrv = &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.buildRouter(registry),
	}
	return srv, nil
}

func (s *Server) buildRouter(registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	NewAPI(s.service, s.pen, s.profile, s.log).RegisterRoutes(r)
	return r
}

// Start subscribes the engines, launches the schedulers, and serves HTTP
// until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.pen.Subscribe(); err != nil {
		return fmt.Errorf("subscribe %s: %w", sagas.PenRequestSagaName, err)
	}
	if err := s.profile.Subscribe(); err != nil {
		return fmt.Errorf("subscribe %s: %w", sagas.ProfileRequestSagaName, err)
	}

	s.reconciler.Start(ctx)
	s.purger.Start(ctx)

	s.log.Info("sagaflow server listening",
		zap.String("addr", s.httpSrv.Addr),
		zap.Strings("sagas", s.engines.Names()))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the schedulers, drains the HTTP listener, and releases the
// store, bus, and redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.reconciler.Stop()
	s.purger.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(drainCtx); err != nil {
		s.log.Warn("http shutdown failed", zap.Error(err))
	}

	if err := s.gateway.Close(); err != nil {
		s.log.Warn("gateway close failed", zap.Error(err))
	}
	if err := s.redis.Close(); err != nil {
		s.log.Warn("redis close failed", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.log.Warn("store close failed", zap.Error(err))
	}
	s.log.Info("sagaflow server stopped")
	return nil
}
