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
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovationmech/sagaflow/pkg/logger"
	"github.com/innovationmech/sagaflow/pkg/saga/retry"
)

// updateMaxAttempts bounds the optimistic persistence retries on
// append-event-and-update. Exhaustion propagates to the caller; the event is
// effectively dropped and recovered later by reconciliation.
const updateMaxAttempts = 5

// Service is the transactional façade over the Store. It owns saga row
// creation (with the in-flight conflict check), the retried
// append-event-and-update path, and the audit read operations.
type Service struct {
	store  Store
	policy *retry.Policy
	log    *zap.Logger
}

// NewService builds a Service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		policy: retry.NewExponentialPolicy(updateMaxAttempts, 50*time.Millisecond, 2*time.Second),
		log:    logger.Named("saga.service"),
	}
}

// CreateSagaRecord inserts a new saga row with status STARTED and state
// INITIATED in its own transaction, so the row is durable before the first
// event is published. When correlationID is non-empty and another saga for it
// is still in {STARTED, IN_PROGRESS}, creation is rejected with
// ErrSagaConflict and no row is written.
func (s *Service) CreateSagaRecord(ctx context.Context, payload, sagaName, actor, correlationID string) (*Saga, error) {
	if correlationID != "" {
		inFlight, err := s.store.FindByCorrelation(ctx, correlationID, ActiveStatuses())
		if err != nil {
			return nil, NewStorageError("FindByCorrelation", err)
		}
		if len(inFlight) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrSagaConflict, correlationID)
		}
	}

	sg := &Saga{
		ID:            uuid.NewString(),
		SagaName:      sagaName,
		SagaState:     string(EventTypeInitiated),
		Status:        StatusStarted,
		Payload:       payload,
		CorrelationID: correlationID,
		CreateUser:    actor,
		UpdateUser:    actor,
	}
	if err := s.store.SaveSaga(ctx, sg); err != nil {
		return nil, NewStorageError("SaveSaga", err)
	}

	s.log.Info("saga record created",
		zap.String("sagaId", sg.ID),
		zap.String("sagaName", sagaName),
		zap.String("correlationId", correlationID))
	return sg, nil
}

// UpdateAttachedSagaWithEvents updates the saga header and appends the event
// log row in one transaction, retried with exponential backoff on any
// failure. The store de-duplicates by the per-saga
// (outcome, state, stepNumber-1) lookup before inserting.
func (s *Service) UpdateAttachedSagaWithEvents(ctx context.Context, sg *Saga, event *NotificationEvent) error {
	row := &SagaEvent{
		ID:            uuid.NewString(),
		SagaID:        sg.ID,
		EventState:    string(event.EventType),
		EventOutcome:  string(event.EventOutcome),
		EventResponse: event.EventPayload,
		CreateUser:    sg.UpdateUser,
		UpdateUser:    sg.UpdateUser,
	}

	err := s.policy.Do(ctx, func() error {
		return s.store.UpdateSagaWithEvent(ctx, sg, row)
	})
	if err != nil {
		s.log.Error("saga update exhausted retries, event dropped until reconciliation",
			zap.String("sagaId", sg.ID),
			zap.String("eventType", string(event.EventType)),
			zap.String("eventOutcome", string(event.EventOutcome)),
			zap.Error(err))
		return NewStorageError("UpdateSagaWithEvent", err)
	}
	return nil
}

// SaveSaga persists header mutations made by a step function.
func (s *Service) SaveSaga(ctx context.Context, sg *Saga) error {
	if err := s.store.SaveSaga(ctx, sg); err != nil {
		return NewStorageError("SaveSaga", err)
	}
	return nil
}

// GetSaga loads a saga header by id.
func (s *Service) GetSaga(ctx context.Context, sagaID string) (*Saga, error) {
	return s.store.GetSaga(ctx, sagaID)
}

// GetSagaEvents returns the full event history for a saga, ordered by step
// number.
func (s *Service) GetSagaEvents(ctx context.Context, sagaID string) ([]*SagaEvent, error) {
	return s.store.GetSagaEvents(ctx, sagaID)
}

// FindByCorrelation returns sagas linked to the originating business request,
// restricted to the given statuses.
func (s *Service) FindByCorrelation(ctx context.Context, correlationID string, statuses []Status) ([]*Saga, error) {
	return s.store.FindByCorrelation(ctx, correlationID, statuses)
}

// FindStale returns in-flight sagas whose last update is older than
// updatedBefore, for the reconciliation scan.
func (s *Service) FindStale(ctx context.Context, updatedBefore time.Time) ([]*Saga, error) {
	return s.store.FindStale(ctx, ActiveStatuses(), updatedBefore)
}

// List returns a page of sagas for audit views.
func (s *Service) List(ctx context.Context, filter *Filter) ([]*Saga, int64, error) {
	return s.store.List(ctx, filter)
}

// PurgeOlderThan removes saga rows and their events older than the cutoff.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.store.PurgeOlderThan(ctx, cutoff)
}

// ForceStopActiveSagas terminalizes every in-flight saga for the correlation
// id, so a conflicting operation can take over. The caller broadcasts the
// reserved force-stop notification per stopped saga. Returns the stopped rows.
func (s *Service) ForceStopActiveSagas(ctx context.Context, correlationID, actor string) ([]*Saga, error) {
	active, err := s.store.FindByCorrelation(ctx, correlationID, ActiveStatuses())
	if err != nil {
		return nil, NewStorageError("FindByCorrelation", err)
	}
	stopped := make([]*Saga, 0, len(active))
	for _, sg := range active {
		sg.Status = StatusForceStopped
		sg.UpdateUser = actor
		if err := s.store.SaveSaga(ctx, sg); err != nil {
			return stopped, NewStorageError("SaveSaga", err)
		}
		s.log.Info("saga force-stopped",
			zap.String("sagaId", sg.ID),
			zap.String("sagaName", sg.SagaName),
			zap.String("correlationId", correlationID))
		stopped = append(stopped, sg)
	}
	return stopped, nil
}
