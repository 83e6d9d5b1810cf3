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

package saga

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector records engine and scheduler activity. Implementations can
// forward to Prometheus or other monitoring systems; a no-op collector is used
// when none is configured.
type MetricsCollector interface {
	// RecordSagaStarted increments the count of started sagas.
	RecordSagaStarted(sagaName string)

	// RecordEventHandled increments the count of inbound events accepted for
	// processing.
	RecordEventHandled(sagaName string, eventType EventType)

	// RecordDuplicateDropped increments the count of stale or terminal-state
	// duplicates dropped by the idempotency checks.
	RecordDuplicateDropped(sagaName string)

	// RecordProtocolMismatch increments the count of events with no
	// registered transition.
	RecordProtocolMismatch(sagaName string, eventType EventType, outcome EventOutcome)

	// RecordStepInvoked records one step invocation and its duration.
	RecordStepInvoked(sagaName string, eventType EventType, success bool, duration time.Duration)

	// RecordReplay increments the count of scheduler-driven replays.
	RecordReplay(sagaName string)

	// RecordSagaCompleted records one completed saga and its total lifetime.
	RecordSagaCompleted(sagaName string, lifetime time.Duration)

	// RecordPurgedSagas records the number of saga headers removed by one
	// purge cycle.
	RecordPurgedSagas(count int64)
}

// NoopMetricsCollector discards all measurements.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSagaStarted(string)                                  {}
func (NoopMetricsCollector) RecordEventHandled(string, EventType)                      {}
func (NoopMetricsCollector) RecordDuplicateDropped(string)                             {}
func (NoopMetricsCollector) RecordProtocolMismatch(string, EventType, EventOutcome)    {}
func (NoopMetricsCollector) RecordStepInvoked(string, EventType, bool, time.Duration)  {}
func (NoopMetricsCollector) RecordReplay(string)                                       {}
func (NoopMetricsCollector) RecordSagaCompleted(string, time.Duration)                 {}
func (NoopMetricsCollector) RecordPurgedSagas(int64)                                   {}

// PrometheusMetricsCollector implements MetricsCollector on top of
// prometheus counters and histograms.
type PrometheusMetricsCollector struct {
	started    *prometheus.CounterVec
	handled    *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	mismatches *prometheus.CounterVec
	steps      *prometheus.HistogramVec
	replays    *prometheus.CounterVec
	completed  *prometheus.HistogramVec
	purged     prometheus.Counter
}

// NewPrometheusMetricsCollector builds a collector and registers its metrics
// with the given registerer. Pass prometheus.DefaultRegisterer in production.
func NewPrometheusMetricsCollector(reg prometheus.Registerer) *PrometheusMetricsCollector {
	c := &PrometheusMetricsCollector{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_sagas_started_total",
			Help: "Number of sagas started.",
		}, []string{"saga"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_events_handled_total",
			Help: "Number of inbound events accepted for processing.",
		}, []string{"saga", "event_type"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_duplicate_events_dropped_total",
			Help: "Number of duplicate or terminal-state events dropped.",
		}, []string{"saga"}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_protocol_mismatches_total",
			Help: "Number of events with no registered transition.",
		}, []string{"saga", "event_type", "outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sagaflow_step_duration_seconds",
			Help:    "Duration of saga step invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"saga", "event_type", "success"}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_replays_total",
			Help: "Number of scheduler-driven saga replays.",
		}, []string{"saga"}),
		completed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sagaflow_saga_lifetime_seconds",
			Help:    "Lifetime of completed sagas from creation to completion.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400, 86400},
		}, []string{"saga"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sagaflow_purged_sagas_total",
			Help: "Number of saga headers removed by the purge scheduler.",
		}),
	}
	reg.MustRegister(c.started, c.handled, c.duplicates, c.mismatches, c.steps, c.replays, c.completed, c.purged)
	return c
}

func (c *PrometheusMetricsCollector) RecordSagaStarted(sagaName string) {
	c.started.WithLabelValues(sagaName).Inc()
}

func (c *PrometheusMetricsCollector) RecordEventHandled(sagaName string, eventType EventType) {
	c.handled.WithLabelValues(sagaName, string(eventType)).Inc()
}

func (c *PrometheusMetricsCollector) RecordDuplicateDropped(sagaName string) {
	c.duplicates.WithLabelValues(sagaName).Inc()
}

func (c *PrometheusMetricsCollector) RecordProtocolMismatch(sagaName string, eventType EventType, outcome EventOutcome) {
	c.mismatches.WithLabelValues(sagaName, string(eventType), string(outcome)).Inc()
}

func (c *PrometheusMetricsCollector) RecordStepInvoked(sagaName string, eventType EventType, success bool, duration time.Duration) {
	label := "false"
	if success {
		label = "true"
	}
	c.steps.WithLabelValues(sagaName, string(eventType), label).Observe(duration.Seconds())
}

func (c *PrometheusMetricsCollector) RecordReplay(sagaName string) {
	c.replays.WithLabelValues(sagaName).Inc()
}

func (c *PrometheusMetricsCollector) RecordSagaCompleted(sagaName string, lifetime time.Duration) {
	c.completed.WithLabelValues(sagaName).Observe(lifetime.Seconds())
}

func (c *PrometheusMetricsCollector) RecordPurgedSagas(count int64) {
	c.purged.Add(float64(count))
}
