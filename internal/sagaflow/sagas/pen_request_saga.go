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
	"fmt"

	"github.com/innovationmech/sagaflow/pkg/saga"
	"github.com/innovationmech/sagaflow/pkg/saga/messaging"
)

// penRequestUpdateCommand closes the PEN request on the request service.
type penRequestUpdateCommand struct {
	PenRequestID    string `json:"penRequestID"`
	Status          string `json:"penRequestStatusCode"`
	Reviewer        string `json:"reviewer,omitempty"`
	RejectionReason string `json:"failureReason,omitempty"`
}

// PenRequestSaga completes a reviewed PEN request: look the student up,
// update the demographics, link the digital identity, mark the request
// complete, and email the requester. A STUDENT_NOT_FOUND outcome takes the
// compensating path that rejects the request instead.
type PenRequestSaga struct {
	engine *saga.Engine[PenRequestPayload]
}

// NewPenRequestSaga builds the saga's transition table and engine.
func NewPenRequestSaga(service *saga.Service, gateway messaging.Gateway, metrics saga.MetricsCollector) (*PenRequestSaga, error) {
	s := &PenRequestSaga{}

	registry, err := saga.NewStepRegistry[PenRequestPayload]().
		Step(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, EventGetStudent, s.getStudent).
		Step(EventGetStudent, OutcomeStudentFound, EventUpdateStudent, s.updateStudent).
		CompensatingStep(EventGetStudent, OutcomeStudentNotFound, EventUpdatePenRequest, s.rejectPenRequest).
		Step(EventUpdateStudent, OutcomeStudentUpdated, EventUpdateDigitalID, s.updateDigitalID).
		Step(EventUpdateDigitalID, OutcomeDigitalIDUpdated, EventUpdatePenRequest, s.completePenRequest).
		Step(EventUpdatePenRequest, OutcomePenRequestUpdated, EventNotifyStudent, s.notifyStudent).
		Step(EventNotifyStudent, OutcomeNotificationSent, saga.EventTypeCompleted, s.complete).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build %s registry: %w", PenRequestSagaName, err)
	}

	engine, err := saga.NewEngine(saga.EngineConfig{
		SagaName: PenRequestSagaName,
		Topic:    TopicPenRequestSaga,
		Service:  service,
		Gateway:  gateway,
		Metrics:  metrics,
	}, registry)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Engine exposes the saga-type-agnostic orchestrator view for registration.
func (s *PenRequestSaga) Engine() *saga.Engine[PenRequestPayload] {
	return s.engine
}

// Start validates the payload and starts a new saga instance. The PEN request
// id doubles as the correlation id, so a second completion attempt for the
// same request is rejected while the first is in flight.
func (s *PenRequestSaga) Start(ctx context.Context, payload *PenRequestPayload, actor string) (*saga.Saga, error) {
	return s.engine.StartSaga(ctx, payload, actor, payload.PenRequestID)
}

// Subscribe attaches the engine to its inbound topic.
func (s *PenRequestSaga) Subscribe() error {
	return s.engine.Subscribe()
}

func (s *PenRequestSaga) getStudent(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *PenRequestPayload) error {
	return requestGetStudent(ctx, s.engine, sg, &payload.StudentCoreData)
}

func (s *PenRequestSaga) updateStudent(ctx context.Context, event *saga.NotificationEvent, sg *saga.Saga, payload *PenRequestPayload) error {
	if err := mergeStudentResponse(event, &payload.StudentCoreData); err != nil {
		return err
	}
	// The merged studentID has to survive the next event round-trip.
	if err := s.engine.SaveSagaPayload(ctx, sg, payload); err != nil {
		return err
	}
	return requestUpdateStudent(ctx, s.engine, sg, &payload.StudentCoreData)
}

func (s *PenRequestSaga) updateDigitalID(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *PenRequestPayload) error {
	return requestUpdateDigitalID(ctx, s.engine, sg, payload.DigitalID, payload.StudentID)
}

func (s *PenRequestSaga) completePenRequest(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *PenRequestPayload) error {
	return sendCommand(ctx, s.engine, TopicPenRequestAPI, EventUpdatePenRequest, sg, penRequestUpdateCommand{
		PenRequestID: payload.PenRequestID,
		Status:       "MANUAL",
		Reviewer:     payload.Reviewer,
	})
}

// rejectPenRequest is the compensating path taken when no student matches the
// reviewed request. The request flips back to REJECTED and the requester is
// still notified.
func (s *PenRequestSaga) rejectPenRequest(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *PenRequestPayload) error {
	if payload.RejectionReason == "" {
		payload.RejectionReason = "No student record matched the completed request."
		if err := s.engine.SaveSagaPayload(ctx, sg, payload); err != nil {
			return err
		}
	}
	return sendCommand(ctx, s.engine, TopicPenRequestAPI, EventUpdatePenRequest, sg, penRequestUpdateCommand{
		PenRequestID:    payload.PenRequestID,
		Status:          "REJECTED",
		Reviewer:        payload.Reviewer,
		RejectionReason: payload.RejectionReason,
	})
}

func (s *PenRequestSaga) notifyStudent(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *PenRequestPayload) error {
	template := "completedPENRequest"
	if sg.SagaCompensated {
		template = "rejectedPENRequest"
	}
	return requestNotifyStudent(ctx, s.engine, sg, &payload.StudentCoreData, payload.CompleteComment, template)
}

func (s *PenRequestSaga) complete(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *PenRequestPayload) error {
	return s.engine.MarkCompleted(ctx, sg, payload)
}
