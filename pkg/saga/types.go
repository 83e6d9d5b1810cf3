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
)

// Status represents the lifecycle status of a saga row.
type Status string

const (
	// StatusStarted indicates the saga row has been created but no step has
	// completed yet.
	StatusStarted Status = "STARTED"

	// StatusInProgress indicates at least one step has been applied.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusCompleted indicates the saga finished its terminal step.
	StatusCompleted Status = "COMPLETED"

	// StatusForceStopped indicates the saga was terminated externally by a
	// conflicting operation.
	StatusForceStopped Status = "FORCE_STOPPED"
)

// IsTerminal returns true once no further mutation of the saga is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusForceStopped
}

// ActiveStatuses lists the statuses of sagas that are still in flight.
// Used by the conflict check at start time and by the reconciler scan.
func ActiveStatuses() []Status {
	return []Status{StatusStarted, StatusInProgress}
}

// Saga is the durable header row for one in-flight or completed distributed
// transaction. The business payload is kept as an opaque serialized blob and
// deserialized fresh on every step, so the engine holds no in-memory state
// between events.
type Saga struct {
	ID              string    `gorm:"column:saga_id;primaryKey;size:36" json:"sagaId"`
	SagaName        string    `gorm:"column:saga_name;size:120;index" json:"sagaName"`
	SagaState       string    `gorm:"column:saga_state;size:120" json:"sagaState"`
	Status          Status    `gorm:"column:status;size:20;index" json:"status"`
	Payload         string    `gorm:"column:payload;type:text" json:"payload"`
	SagaCompensated bool      `gorm:"column:saga_compensated" json:"sagaCompensated"`
	CorrelationID   string    `gorm:"column:correlation_id;size:36;index" json:"correlationId"`
	RetryCount      int       `gorm:"column:retry_count" json:"retryCount"`
	CreateUser      string    `gorm:"column:create_user;size:32" json:"createUser"`
	UpdateUser      string    `gorm:"column:update_user;size:32" json:"updateUser"`
	CreatedAt       time.Time `gorm:"column:create_date" json:"createDate"`
	UpdatedAt       time.Time `gorm:"column:update_date;index" json:"updateDate"`
}

// TableName maps the model to its table.
func (Saga) TableName() string {
	return "saga"
}

// SagaEvent is one append-only log row recording a processed transition.
// Step numbers are 1-based and strictly increasing per saga with no gaps;
// the row with the maximum step number is the last event that occurred and
// is the replay anchor for stalled sagas.
type SagaEvent struct {
	ID            string    `gorm:"column:saga_event_id;primaryKey;size:36" json:"sagaEventId"`
	SagaID        string    `gorm:"column:saga_id;size:36;index" json:"sagaId"`
	EventState    string    `gorm:"column:saga_event_state;size:120" json:"sagaEventState"`
	EventOutcome  string    `gorm:"column:saga_event_outcome;size:120" json:"sagaEventOutcome"`
	StepNumber    int       `gorm:"column:saga_step_number" json:"sagaStepNumber"`
	EventResponse string    `gorm:"column:saga_event_response;type:text" json:"sagaEventResponse"`
	CreateUser    string    `gorm:"column:create_user;size:32" json:"createUser"`
	UpdateUser    string    `gorm:"column:update_user;size:32" json:"updateUser"`
	CreatedAt     time.Time `gorm:"column:create_date" json:"createDate"`
	UpdatedAt     time.Time `gorm:"column:update_date" json:"updateDate"`
}

// TableName maps the model to its table.
func (SagaEvent) TableName() string {
	return "saga_event"
}

// Filter narrows paginated saga listings for audit views.
type Filter struct {
	// SagaName restricts results to one saga type when non-empty.
	SagaName string

	// Statuses restricts results to the given statuses when non-empty.
	Statuses []Status

	// CorrelationID restricts results to one originating request when non-empty.
	CorrelationID string

	// CreatedAfter / CreatedBefore bound the creation time range.
	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	// Limit and Offset control pagination. A zero Limit falls back to 20.
	Limit  int
	Offset int

	// SortBy names the sort column ("create_date" or "update_date");
	// SortDesc reverses the order.
	SortBy   string
	SortDesc bool
}
