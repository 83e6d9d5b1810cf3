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
	"time"
)

// Store is the durable persistence contract for saga headers and their
// append-only event logs. Implementations must be safe for concurrent use.
type Store interface {
	// SaveSaga inserts or updates a saga header row.
	SaveSaga(ctx context.Context, sg *Saga) error

	// GetSaga loads a saga header by id. Returns ErrSagaNotFound when the
	// row does not exist.
	GetSaga(ctx context.Context, sagaID string) (*Saga, error)

	// UpdateSagaWithEvent updates the saga header and appends the event in
	// one transaction. The store assigns the event's step number as the
	// prior event count plus one and skips the insert when a row with the
	// same (outcome, state, stepNumber-1) already exists for this saga, so
	// a replay racing live delivery cannot duplicate log rows.
	UpdateSagaWithEvent(ctx context.Context, sg *Saga, event *SagaEvent) error

	// GetSagaEvents loads all event rows for a saga ordered by step number.
	GetSagaEvents(ctx context.Context, sagaID string) ([]*SagaEvent, error)

	// FindByCorrelation returns sagas for a correlation id restricted to
	// the given statuses.
	FindByCorrelation(ctx context.Context, correlationID string, statuses []Status) ([]*Saga, error)

	// FindStale returns sagas in the given statuses whose last update is
	// older than updatedBefore.
	FindStale(ctx context.Context, statuses []Status, updatedBefore time.Time) ([]*Saga, error)

	// List returns a page of sagas matching the filter plus the unpaged
	// total, for audit views.
	List(ctx context.Context, filter *Filter) ([]*Saga, int64, error)

	// PurgeOlderThan deletes saga and saga-event rows created before the
	// cutoff, events before headers, in one transaction. Returns the number
	// of deleted saga headers.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the store's resources.
	Close() error
}
