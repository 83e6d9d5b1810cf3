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

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/innovationmech/sagaflow/pkg/saga"
)

// MemoryStore is an in-memory Store for tests. It mirrors the GormStore
// transaction semantics, including step-number assignment and event
// de-duplication, and supports fault injection for retry tests.
type MemoryStore struct {
	mu     sync.RWMutex
	sagas  map[string]*saga.Saga
	events map[string][]*saga.SagaEvent

	// FailSaveSaga and FailUpdate, when non-nil, are consulted before the
	// corresponding operation; a non-nil return aborts it. They allow retry
	// and exhaustion tests to inject transient failures.
	FailSaveSaga func() error
	FailUpdate   func() error

	// Now, when non-nil, supplies row timestamps so staleness tests can
	// control the clock.
	Now func() time.Time
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sagas:  make(map[string]*saga.Saga),
		events: make(map[string][]*saga.SagaEvent),
	}
}

func cloneSaga(sg *saga.Saga) *saga.Saga {
	cp := *sg
	return &cp
}

func cloneEvent(ev *saga.SagaEvent) *saga.SagaEvent {
	cp := *ev
	return &cp
}

// SaveSaga inserts or updates a saga header row.
func (s *MemoryStore) SaveSaga(ctx context.Context, sg *saga.Saga) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailSaveSaga != nil {
		if err := s.FailSaveSaga(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.sagas[sg.ID]; ok {
		sg.CreatedAt = existing.CreatedAt
	} else if sg.CreatedAt.IsZero() {
		sg.CreatedAt = now
	}
	sg.UpdatedAt = now
	s.sagas[sg.ID] = cloneSaga(sg)
	return nil
}

// GetSaga loads a saga header by id.
func (s *MemoryStore) GetSaga(ctx context.Context, sagaID string) (*saga.Saga, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sg, ok := s.sagas[sagaID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", saga.ErrSagaNotFound, sagaID)
	}
	return cloneSaga(sg), nil
}

// UpdateSagaWithEvent updates the header and appends the event atomically
// under the store mutex, with the same step-number and de-duplication rules
// as the durable store.
func (s *MemoryStore) UpdateSagaWithEvent(ctx context.Context, sg *saga.Saga, event *saga.SagaEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailUpdate != nil {
		if err := s.FailUpdate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.sagas[sg.ID]; ok {
		sg.CreatedAt = existing.CreatedAt
	} else if sg.CreatedAt.IsZero() {
		sg.CreatedAt = now
	}
	sg.UpdatedAt = now
	s.sagas[sg.ID] = cloneSaga(sg)

	log := s.events[sg.ID]
	count := len(log)
	for _, prior := range log {
		if prior.EventOutcome == event.EventOutcome &&
			prior.EventState == event.EventState &&
			prior.StepNumber == count {
			return nil
		}
	}

	event.StepNumber = count + 1
	event.CreatedAt = now
	event.UpdatedAt = now
	s.events[sg.ID] = append(log, cloneEvent(event))
	return nil
}

// GetSagaEvents loads all event rows for a saga ordered by step number.
func (s *MemoryStore) GetSagaEvents(ctx context.Context, sagaID string) ([]*saga.SagaEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.events[sagaID]
	out := make([]*saga.SagaEvent, 0, len(log))
	for _, ev := range log {
		out = append(out, cloneEvent(ev))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

func statusIn(st saga.Status, statuses []saga.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// FindByCorrelation returns sagas for a correlation id restricted to the
// given statuses.
func (s *MemoryStore) FindByCorrelation(ctx context.Context, correlationID string, statuses []saga.Status) ([]*saga.Saga, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []*saga.Saga
	for _, sg := range s.sagas {
		if sg.CorrelationID == correlationID && statusIn(sg.Status, statuses) {
			rows = append(rows, cloneSaga(sg))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

// FindStale returns sagas in the given statuses not updated since
// updatedBefore, oldest first.
func (s *MemoryStore) FindStale(ctx context.Context, statuses []saga.Status, updatedBefore time.Time) ([]*saga.Saga, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []*saga.Saga
	for _, sg := range s.sagas {
		if statusIn(sg.Status, statuses) && sg.UpdatedAt.Before(updatedBefore) {
			rows = append(rows, cloneSaga(sg))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UpdatedAt.Before(rows[j].UpdatedAt) })
	return rows, nil
}

// List returns a page of sagas matching the filter plus the unpaged total.
func (s *MemoryStore) List(ctx context.Context, filter *saga.Filter) ([]*saga.Saga, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if filter == nil {
		filter = &saga.Filter{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []*saga.Saga
	for _, sg := range s.sagas {
		if filter.SagaName != "" && sg.SagaName != filter.SagaName {
			continue
		}
		if !statusIn(sg.Status, filter.Statuses) {
			continue
		}
		if filter.CorrelationID != "" && sg.CorrelationID != filter.CorrelationID {
			continue
		}
		if filter.CreatedAfter != nil && sg.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && !sg.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		rows = append(rows, cloneSaga(sg))
	}

	byUpdate := filter.SortBy == "update_date"
	sort.Slice(rows, func(i, j int) bool {
		var before bool
		if byUpdate {
			before = rows[i].UpdatedAt.Before(rows[j].UpdatedAt)
		} else {
			before = rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		if filter.SortDesc {
			return !before
		}
		return before
	})

	total := int64(len(rows))
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if filter.Offset >= len(rows) {
		return nil, total, nil
	}
	rows = rows[filter.Offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, total, nil
}

// PurgeOlderThan deletes sagas created before the cutoff with their events.
func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, sg := range s.sagas {
		if sg.CreatedAt.Before(cutoff) {
			delete(s.events, id)
			delete(s.sagas, id)
			purged++
		}
	}
	return purged, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
