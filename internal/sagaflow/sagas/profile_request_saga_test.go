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

package sagas

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/sagaflow/pkg/saga"
	"github.com/innovationmech/sagaflow/pkg/saga/messaging"
	"github.com/innovationmech/sagaflow/pkg/saga/storage"
)

func validProfilePayload() *ProfileRequestPayload {
	return &ProfileRequestPayload{
		StudentCoreData: StudentCoreData{
			PEN:       "987654321",
			LegalLast: "NGUYEN",
			DOB:       "2006-09-01",
			Email:     "requester@example.com",
		},
		ProfileRequestID: uuid.NewString(),
		DigitalID:        uuid.NewString(),
		Reviewer:         "REVIEWER_B",
	}
}

func TestProfileRequestSaga_HappyPath(t *testing.T) {
	store := storage.NewMemoryStore()
	gateway := messaging.NewMemoryGateway()
	service := saga.NewService(store)
	s, err := NewProfileRequestSaga(service, gateway, nil)
	require.NoError(t, err)

	ctx := context.Background()
	payload := validProfilePayload()
	studentID := uuid.NewString()

	sg, err := s.Start(ctx, payload, "SAGA_API")
	require.NoError(t, err)

	deliver := func(eventType saga.EventType, outcome saga.EventOutcome, data string) {
		t.Helper()
		require.NoError(t, s.Engine().HandleEvent(ctx, &saga.NotificationEvent{
			EventType:    eventType,
			EventOutcome: outcome,
			SagaID:       sg.ID,
			EventPayload: data,
		}))
	}

	deliver(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, "")
	cmd := lastCommand(t, gateway, TopicStudentAPI)
	assert.Equal(t, EventGetStudent, cmd.EventType)
	assert.Equal(t, TopicProfileRequestSaga, cmd.ReplyTo)

	found, err := json.Marshal(StudentCoreData{StudentID: studentID, PEN: payload.PEN})
	require.NoError(t, err)
	deliver(EventGetStudent, OutcomeStudentFound, string(found))
	cmd = lastCommand(t, gateway, TopicStudentAPI)
	assert.Equal(t, EventUpdateStudent, cmd.EventType)

	deliver(EventUpdateStudent, OutcomeStudentUpdated, "")
	cmd = lastCommand(t, gateway, TopicProfileRequestAPI)
	var pr profileRequestUpdateCommand
	require.NoError(t, json.Unmarshal([]byte(cmd.EventPayload), &pr))
	assert.Equal(t, payload.ProfileRequestID, pr.ProfileRequestID)
	assert.Equal(t, "COMPLETED", pr.Status)

	deliver(EventUpdateProfileRequest, OutcomeProfileRequestUpdated, "")
	mail := lastCommand(t, gateway, TopicEmailAPI)
	var nc notifyCommand
	require.NoError(t, json.Unmarshal([]byte(mail.EventPayload), &nc))
	assert.Equal(t, "completedStudentProfileRequest", nc.Template)

	deliver(EventNotifyStudent, OutcomeNotificationSent, "")
	row, err := service.GetSaga(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, row.Status)

	events, err := service.GetSagaEvents(ctx, sg.ID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestProfileRequestSaga_UnknownOutcomeIsIgnored(t *testing.T) {
	store := storage.NewMemoryStore()
	gateway := messaging.NewMemoryGateway()
	service := saga.NewService(store)
	s, err := NewProfileRequestSaga(service, gateway, nil)
	require.NoError(t, err)

	ctx := context.Background()
	sg, err := s.Start(ctx, validProfilePayload(), "SAGA_API")
	require.NoError(t, err)

	// An outcome this graph never registered: logged as a protocol mismatch
	// and dropped, never an error back to the bus.
	require.NoError(t, s.Engine().HandleEvent(ctx, &saga.NotificationEvent{
		EventType:    EventUpdateDigitalID,
		EventOutcome: OutcomeDigitalIDUpdated,
		SagaID:       sg.ID,
	}))

	events, err := service.GetSagaEvents(ctx, sg.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}
