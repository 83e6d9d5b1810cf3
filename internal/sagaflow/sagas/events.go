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

// Package sagas defines the student-identity saga types driven by this
// service: completing a PEN request and completing a student profile request.
// Each saga file declares its payload, transition table, and step functions;
// the wire vocabulary shared with the participant services lives here.
package sagas

import "github.com/innovationmech/sagaflow/pkg/saga"

// Saga type names. They key the engine registry and the saga_name column.
const (
	PenRequestSagaName     = "PEN_REQUEST_COMPLETE_SAGA"
	ProfileRequestSagaName = "STUDENT_PROFILE_COMPLETE_SAGA"
)

// Inbound saga topics. Each engine subscribes to its own topic; participants
// reply to the replyTo address carried on each command.
const (
	TopicPenRequestSaga     = "PEN_REQUEST_COMPLETE_SAGA_TOPIC"
	TopicProfileRequestSaga = "STUDENT_PROFILE_COMPLETE_SAGA_TOPIC"
)

// Participant command topics.
const (
	TopicStudentAPI        = "STUDENT_API_TOPIC"
	TopicDigitalIDAPI      = "DIGITAL_ID_API_TOPIC"
	TopicPenRequestAPI     = "PEN_REQUEST_API_TOPIC"
	TopicProfileRequestAPI = "STUDENT_PROFILE_API_TOPIC"
	TopicEmailAPI          = "PROFILE_REQUEST_EMAIL_API_TOPIC"
)

// Domain event types. Each names the operation a participant is asked to
// perform; its position in the saga's registration chain drives the
// idempotency ordering.
const (
	EventGetStudent           saga.EventType = "GET_STUDENT"
	EventUpdateStudent        saga.EventType = "UPDATE_STUDENT"
	EventUpdateDigitalID      saga.EventType = "UPDATE_DIGITAL_ID"
	EventUpdatePenRequest     saga.EventType = "UPDATE_PEN_REQUEST"
	EventUpdateProfileRequest saga.EventType = "UPDATE_STUDENT_PROFILE"
	EventNotifyStudent        saga.EventType = "NOTIFY_STUDENT"
)

// Domain event outcomes reported by participants.
const (
	OutcomeStudentFound          saga.EventOutcome = "STUDENT_FOUND"
	OutcomeStudentNotFound       saga.EventOutcome = "STUDENT_NOT_FOUND"
	OutcomeStudentUpdated        saga.EventOutcome = "STUDENT_UPDATED"
	OutcomeDigitalIDUpdated      saga.EventOutcome = "DIGITAL_ID_UPDATED"
	OutcomePenRequestUpdated     saga.EventOutcome = "PEN_REQUEST_UPDATED"
	OutcomeProfileRequestUpdated saga.EventOutcome = "STUDENT_PROFILE_UPDATED"
	OutcomeNotificationSent      saga.EventOutcome = "NOTIFICATION_SENT"
)
