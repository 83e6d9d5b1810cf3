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
	"encoding/json"
	"fmt"
)

// EventType identifies a logical operation within a saga graph.
type EventType string

// EventOutcome identifies the result a participant reports for an operation.
type EventOutcome string

// Reserved event types shared by every saga graph. The three notification
// types never advance state and are dropped by the engine before any lookup.
const (
	// EventTypeInitiated is the first trigger of every saga graph.
	EventTypeInitiated EventType = "INITIATED"

	// EventTypeCompleted is the terminal saga state recorded when the last
	// step finishes.
	EventTypeCompleted EventType = "COMPLETED"

	// EventTypeSagaStarted is the externally visible "saga started"
	// notification broadcast on the saga's own topic.
	EventTypeSagaStarted EventType = "SAGA_STARTED"

	// EventTypeSagaCompleted is the terminal completion broadcast.
	EventTypeSagaCompleted EventType = "SAGA_COMPLETED"

	// EventTypeSagaForceStopped is the reserved force-stop signal emitted
	// when a conflicting operation terminates a saga externally.
	EventTypeSagaForceStopped EventType = "SAGA_FORCE_STOPPED"
)

// OutcomeInitiateSuccess is the outcome paired with EventTypeInitiated on the
// first delivery of every saga.
const OutcomeInitiateSuccess EventOutcome = "INITIATE_SUCCESS"

// ReplyToBroadcast is the sentinel replyTo marker carried by engine-originated
// notification events. The engine refuses to rebroadcast "saga started" for
// events carrying it, which breaks the echo loop on the saga's own topic.
const ReplyToBroadcast = "SAGA_BROADCAST"

// NotificationEvent is the wire envelope exchanged between the engine and the
// participants. Unknown JSON fields are ignored on read so participants may
// extend their envelopes independently.
type NotificationEvent struct {
	EventType     EventType    `json:"eventType"`
	EventOutcome  EventOutcome `json:"eventOutcome,omitempty"`
	SagaID        string       `json:"sagaId,omitempty"`
	ReplyTo       string       `json:"replyTo,omitempty"`
	EventPayload  string       `json:"eventPayload,omitempty"`
	CorrelationID string       `json:"correlationId,omitempty"`
}

// Marshal serializes the event for publishing.
func (e *NotificationEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("saga: marshal event %s/%s: %w", e.EventType, e.EventOutcome, err)
	}
	return data, nil
}

// UnmarshalEvent decodes a wire envelope received from the gateway.
func UnmarshalEvent(data []byte) (*NotificationEvent, error) {
	var evt NotificationEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("saga: unmarshal event: %w", err)
	}
	if evt.EventType == "" {
		return nil, fmt.Errorf("saga: unmarshal event: %w", ErrMissingEventType)
	}
	return &evt, nil
}
