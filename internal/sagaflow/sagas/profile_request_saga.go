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

// profileRequestUpdateCommand closes the profile request on the request
// service.
type profileRequestUpdateCommand struct {
	ProfileRequestID string `json:"studentProfileRequestID"`
	Status           string `json:"studentRequestStatusCode"`
	Reviewer         string `json:"reviewer,omitempty"`
}

// ProfileRequestSaga completes a reviewed student profile request: look the
// student up, update the demographics, mark the request complete, and email
// the requester. Unlike the PEN request saga there is no digital-identity
// step; the requester is already linked.
type ProfileRequestSaga struct {
	engine *saga.Engine[ProfileRequestPayload]
}

// NewProfileRequestSaga builds the saga's transition table and engine.
func NewProfileRequestSaga(service *saga.Service, gateway messaging.Gateway, metrics saga.MetricsCollector) (*ProfileRequestSaga, error) {
	s := &ProfileRequestSaga{}

	registry, err := saga.NewStepRegistry[ProfileRequestPayload]().
		Step(saga.EventTypeInitiated, saga.OutcomeInitiateSuccess, EventGetStudent, s.getStudent).
		Step(EventGetStudent, OutcomeStudentFound, EventUpdateStudent, s.updateStudent).
		Step(EventUpdateStudent, OutcomeStudentUpdated, EventUpdateProfileRequest, s.completeProfileRequest).
		Step(EventUpdateProfileRequest, OutcomeProfileRequestUpdated, EventNotifyStudent, s.notifyStudent).
		Step(EventNotifyStudent, OutcomeNotificationSent, saga.EventTypeCompleted, s.complete).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build %s registry: %w", ProfileRequestSagaName, err)
	}

	engine, err := saga.NewEngine(saga.EngineConfig{
		SagaName: ProfileRequestSagaName,
		Topic:    TopicProfileRequestSaga,
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
func (s *ProfileRequestSaga) Engine() *saga.Engine[ProfileRequestPayload] {
	return s.engine
}

// Start validates the payload and starts a new saga instance, using the
// profile request id as the correlation id.
func (s *ProfileRequestSaga) Start(ctx context.Context, payload *ProfileRequestPayload, actor string) (*saga.Saga, error) {
	return s.engine.StartSaga(ctx, payload, actor, payload.ProfileRequestID)
}

// Subscribe attaches the engine to its inbound topic.
func (s *ProfileRequestSaga) Subscribe() error {
	return s.engine.Subscribe()
}

func (s *ProfileRequestSaga) getStudent(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *ProfileRequestPayload) error {
	return requestGetStudent(ctx, s.engine, sg, &payload.StudentCoreData)
}

func (s *ProfileRequestSaga) updateStudent(ctx context.Context, event *saga.NotificationEvent, sg *saga.Saga, payload *ProfileRequestPayload) error {
	if err := mergeStudentResponse(event, &payload.StudentCoreData); err != nil {
		return err
	}
	if err := s.engine.SaveSagaPayload(ctx, sg, payload); err != nil {
		return err
	}
	return requestUpdateStudent(ctx, s.engine, sg, &payload.StudentCoreData)
}

func (s *ProfileRequestSaga) completeProfileRequest(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *ProfileRequestPayload) error {
	return sendCommand(ctx, s.engine, TopicProfileRequestAPI, EventUpdateProfileRequest, sg, profileRequestUpdateCommand{
		ProfileRequestID: payload.ProfileRequestID,
		Status:           "COMPLETED",
		Reviewer:         payload.Reviewer,
	})
}

func (s *ProfileRequestSaga) notifyStudent(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *ProfileRequestPayload) error {
	return requestNotifyStudent(ctx, s.engine, sg, &payload.StudentCoreData, payload.CompleteComment, "completedStudentProfileRequest")
}

func (s *ProfileRequestSaga) complete(ctx context.Context, _ *saga.NotificationEvent, sg *saga.Saga, payload *ProfileRequestPayload) error {
	return s.engine.MarkCompleted(ctx, sg, payload)
}
